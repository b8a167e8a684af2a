// Package normalize folds user-typed labels (channel names, code labels,
// advertiser initials) into comparable keys.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// dotted capital I is folded to plain I so "Kiss FM" typed on a Turkish
// keyboard and "KISS FM" from the channel table compare equal.
var dotless = strings.NewReplacer("İ", "I")

// Key trims, collapses inner whitespace and upper-cases s.
func Key(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return ""
	}
	return dotless.Replace(cases.Upper(language.Und).String(s))
}

// Initial returns the upper-cased first letter of s, or fallback when s
// is blank.
func Initial(s, fallback string) string {
	s = strings.TrimSpace(s)
	for _, r := range s {
		return Key(string(r))
	}
	return fallback
}
