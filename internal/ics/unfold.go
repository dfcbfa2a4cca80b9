package ics

import "strings"

// Unfold removes RFC 5545 line folding: a line break (CRLF or bare LF)
// immediately followed by a single space or tab joins the two physical lines.
// Text that is already unfolded is returned unchanged.
func Unfold(text string) string {
	if !strings.Contains(text, "\n ") && !strings.Contains(text, "\n\t") {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\r' && i+2 < len(text) && text[i+1] == '\n' && isFoldSpace(text[i+2]):
			i += 2
		case c == '\n' && i+1 < len(text) && isFoldSpace(text[i+1]):
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Lines unfolds text and splits it into trimmed logical lines. Both CRLF and
// LF line endings are accepted, including a mix of the two.
func Lines(text string) []string {
	raw := strings.Split(Unfold(text), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		lines = append(lines, strings.TrimSpace(l))
	}
	return lines
}

func isFoldSpace(c byte) bool {
	return c == ' ' || c == '\t'
}
