package command

import (
	"fmt"
	"strings"

	"github.com/ashureev/shsh-chat/internal/domain"
)

// Usage describes one operation of the markup vocabulary.
type Usage struct {
	Operation   domain.Operation
	Description string
	Fields      []string
}

// Vocabulary is the full command vocabulary with the fields each operation takes.
var Vocabulary = []Usage{
	{domain.OpReadFile, "Read the contents of a file", nil},
	{domain.OpWriteFile, "Create or overwrite a file", []string{fieldContent}},
	{domain.OpListFiles, "List the entries of a directory", nil},
	{domain.OpCreateDir, "Create a directory and any missing parents", nil},
	{domain.OpDeleteFile, "Delete a file", nil},
	{domain.OpEditFile, "Replace the first occurrence of old_text with new_text", []string{fieldOldText, fieldNewText}},
	{domain.OpDeleteDir, "Delete a directory and everything in it", nil},
}

// Format renders cmd as markup that Parse accepts.
func Format(cmd domain.Command) string {
	var b strings.Builder
	b.WriteString(blockOpen)
	fmt.Fprintf(&b, "<%s>%s</%s>", fieldOperation, cmd.Operation, fieldOperation)
	fmt.Fprintf(&b, "<%s>%s</%s>", fieldPath, cmd.Path, fieldPath)
	if cmd.Content != "" {
		fmt.Fprintf(&b, "<%s>%s</%s>", fieldContent, cmd.Content, fieldContent)
	}
	if cmd.OldText != "" {
		fmt.Fprintf(&b, "<%s>%s</%s>", fieldOldText, cmd.OldText, fieldOldText)
	}
	if cmd.NewText != "" {
		fmt.Fprintf(&b, "<%s>%s</%s>", fieldNewText, cmd.NewText, fieldNewText)
	}
	b.WriteString(blockClose)
	return b.String()
}

// Syntax renders the exact markup for u with placeholder values.
func (u Usage) Syntax() string {
	cmd := domain.Command{Operation: u.Operation, Path: "PATH"}
	for _, f := range u.Fields {
		switch f {
		case fieldContent:
			cmd.Content = "FILE CONTENT"
		case fieldOldText:
			cmd.OldText = "EXISTING TEXT"
		case fieldNewText:
			cmd.NewText = "REPLACEMENT TEXT"
		}
	}
	return Format(cmd)
}
