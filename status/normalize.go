package status

import (
	"strings"
	"unicode"
)

// ScreamingCase upper-cases s, drops every character that is not an ASCII
// letter, digit or whitespace, and joins the remaining words with "_"
// ("aB&4 c@4 d-2" becomes "AB4_C4_D2").
func ScreamingCase(s string) string {
	return screaming(s, "_")
}

// Normalize is ScreamingCase without word separators ("In Progress" becomes
// "INPROGRESS"). Status matching is done on this form.
func Normalize(s string) string {
	return screaming(s, "")
}

func screaming(s, sep string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), sep)
}
