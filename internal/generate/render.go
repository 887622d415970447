package generate

import (
	"fmt"
	"strings"

	"github.com/ashureev/shsh-chat/internal/domain"
)

// RenderResults renders the results carried by msg as a compact block tagged with its role.
// Messages without results render as "".
func RenderResults(msg domain.Message) string {
	if !msg.HasResults() {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<fs-results role=%q>\n", msg.Role)
	for _, r := range msg.Results {
		fmt.Fprintf(&b, "<result operation=%q path=%q success=\"%t\">", r.Operation, r.Path, r.Success)
		if r.Data != "" {
			fmt.Fprintf(&b, "<data>%s</data>", r.Data)
		}
		if r.Error != "" {
			fmt.Fprintf(&b, "<error>%s</error>", r.Error)
		}
		b.WriteString("</result>\n")
	}
	b.WriteString("</fs-results>")
	return b.String()
}

// recentResults concatenates the rendered results of the last two history entries.
func recentResults(history []domain.Message) string {
	if len(history) <= 1 {
		return ""
	}
	var blocks []string
	for _, msg := range history[len(history)-2:] {
		if block := RenderResults(msg); block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n")
}

// buildTurns converts history to role/content turns. The rendered results of the
// last two entries are appended to the newest user turn among them; stored
// records are not modified.
func buildTurns(history []domain.Message) []domain.Turn {
	turns := make([]domain.Turn, len(history))
	for i, msg := range history {
		turns[i] = domain.Turn{Role: msg.Role, Content: msg.Content}
	}

	results := recentResults(history)
	if results == "" {
		return turns
	}
	for i := len(turns) - 1; i >= len(turns)-2; i-- {
		if turns[i].Role == domain.RoleUser {
			turns[i].Content += "\n\n" + results
			break
		}
	}
	return turns
}
