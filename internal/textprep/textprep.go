// Package textprep normalises raw text before it is merged.
package textprep

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Options controls normalisation.
type Options struct {
	// CollapseWhitespace keeps only the first whitespace symbol of every run.
	CollapseWhitespace bool
}

// Normalize composes s to NFC, lowercases it and optionally collapses
// whitespace runs.
func Normalize(s string, opts Options) string {
	s = norm.NFC.String(s)
	s = cases.Lower(language.Und).String(s)
	if opts.CollapseWhitespace {
		s = collapseWhitespace(s)
	}
	return s
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !prevSpace {
				b.WriteRune(r)
			}
			prevSpace = true
			continue
		}
		b.WriteRune(r)
		prevSpace = false
	}
	return b.String()
}
