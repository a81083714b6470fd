package util

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

func Normalize(s string) string {
	return norm.NFKC.String(s)
}

// NormalizeAnswer canonicalises a security answer before hashing so that
// case, Unicode form and surrounding or repeated whitespace do not matter.
func NormalizeAnswer(s string) string {
	folded := cases.Fold().String(Normalize(s))
	return strings.Join(strings.Fields(folded), " ")
}
