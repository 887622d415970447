package command

import "strings"

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokBlockOpen
	tokBlockClose
	tokField
)

type token struct {
	kind  tokenKind
	name  string // field name for tokField
	value string // raw field body for tokField
}

// scanner tokenizes command markup. Anything that is not a block marker or a
// complete known field is skipped as free text.
type scanner struct {
	src string
	pos int
}

func newScanner(src string) *scanner {
	return &scanner{src: src}
}

func (s *scanner) next() token {
	for {
		i := strings.IndexByte(s.src[s.pos:], '<')
		if i < 0 {
			s.pos = len(s.src)
			return token{kind: tokEOF}
		}
		s.pos += i
		rest := s.src[s.pos:]

		switch {
		case strings.HasPrefix(rest, blockOpen):
			s.pos += len(blockOpen)
			return token{kind: tokBlockOpen}
		case strings.HasPrefix(rest, blockClose):
			s.pos += len(blockClose)
			return token{kind: tokBlockClose}
		}

		if tok, ok := s.field(rest); ok {
			return tok
		}
		s.pos++
	}
}

// field reads <name>body</name> for a known field name. The body is raw text up
// to the first matching close tag, so markup inside content is preserved. A
// field that would run past the next block marker is not complete.
func (s *scanner) field(rest string) (token, bool) {
	for _, name := range fieldNames {
		open := "<" + name + ">"
		if !strings.HasPrefix(rest, open) {
			continue
		}
		body := rest[len(open):]
		end := strings.Index(body, "</"+name+">")
		if end < 0 {
			return token{}, false
		}
		if b := strings.Index(body[:end], blockOpen); b >= 0 {
			return token{}, false
		}
		s.pos += len(open) + end + len(name) + 3
		return token{kind: tokField, name: name, value: body[:end]}, true
	}
	return token{}, false
}
