package generate

import (
	"fmt"
	"strings"

	"github.com/ashureev/shsh-chat/internal/command"
	"github.com/ashureev/shsh-chat/internal/domain"
	"github.com/ashureev/shsh-chat/internal/permission"
)

const preambleIntro = `You are a helpful assistant with access to a filesystem.
You can request filesystem operations by embedding command blocks in your reply.
Every block is executed in order after your reply is sent, and the results are shown to you
on the next turn inside <fs-results> blocks. Only use the operations listed below, only
when they are needed, and never invent results you have not seen.`

// Preamble builds the system preamble for one generation call. It is rebuilt on
// every call and never stored.
func Preamble(session domain.Session) string {
	var b strings.Builder
	b.WriteString(preambleIntro)
	b.WriteString("\n\nAvailable commands:\n")
	for _, u := range command.Vocabulary {
		req, _ := permission.Required(u.Operation)
		fmt.Fprintf(&b, "\n%s (requires %q): %s\n%s\n", u.Operation, req, u.Description, u.Syntax())
	}

	fmt.Fprintf(&b, "\nRelative paths are resolved against the filesystem root: %s\n", session.FilesystemRoot)
	if len(session.Permissions) == 0 {
		b.WriteString("Current permissions: none. Do not request any filesystem operation.\n")
	} else {
		fmt.Fprintf(&b, "Current permissions: %s. Operations needing other permissions will be refused.\n", session.Permissions)
	}
	if !session.HasExecutor() {
		b.WriteString("The filesystem executor is currently unavailable; commands will fail.\n")
	}
	return b.String()
}
