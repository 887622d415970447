// Package command extracts filesystem commands embedded in message text.
//
// A command block looks like:
//
//	<fs-command>
//	  <operation>write-file</operation>
//	  <path>notes/todo.txt</path>
//	  <content>buy milk</content>
//	</fs-command>
//
// Parsing is tolerant: a block missing its operation or path, or never closed,
// is skipped and scanning continues with the next block.
package command

import (
	"strings"

	"github.com/ashureev/shsh-chat/internal/domain"
)

const (
	blockOpen  = "<fs-command>"
	blockClose = "</fs-command>"

	fieldOperation = "operation"
	fieldPath      = "path"
	fieldContent   = "content"
	fieldOldText   = "old_text"
	fieldNewText   = "new_text"
)

var fieldNames = []string{fieldOperation, fieldPath, fieldContent, fieldOldText, fieldNewText}

// Parse returns the well-formed commands in text, in left-to-right order.
func Parse(text string) []domain.Command {
	commands := []domain.Command{}
	sc := newScanner(text)

	var fields map[string]string
	inBlock := false

	for {
		tok := sc.next()
		switch tok.kind {
		case tokEOF:
			// An unterminated trailing block is dropped.
			return commands
		case tokBlockOpen:
			// A new block before the previous one closed abandons the previous one.
			fields = make(map[string]string)
			inBlock = true
		case tokBlockClose:
			if inBlock {
				if cmd, ok := build(fields); ok {
					commands = append(commands, cmd)
				}
			}
			fields = nil
			inBlock = false
		case tokField:
			if !inBlock {
				continue
			}
			if _, dup := fields[tok.name]; !dup {
				fields[tok.name] = tok.value
			}
		}
	}
}

func build(fields map[string]string) (domain.Command, bool) {
	op := strings.TrimSpace(fields[fieldOperation])
	path := strings.TrimSpace(fields[fieldPath])
	if op == "" || path == "" {
		return domain.Command{}, false
	}
	return domain.Command{
		Operation: domain.Operation(op),
		Path:      path,
		Content:   fields[fieldContent],
		OldText:   fields[fieldOldText],
		NewText:   fields[fieldNewText],
	}, true
}
