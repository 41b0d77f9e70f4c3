package grading

import (
	"strings"
	"unicode"
)

// normalize trims s and collapses every run of whitespace into one space.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

func equalFold(got, want string) bool {
	return strings.EqualFold(normalize(got), normalize(want))
}
