package shared

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName canonicalises a module or permission name: NFC normalisation
// followed by lower-casing and trimming. Names are compared only in this
// form so visually identical spellings cannot alias distinct entries.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(name)))
}

// EqualNames reports whether two names are equal after normalisation.
func EqualNames(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}
