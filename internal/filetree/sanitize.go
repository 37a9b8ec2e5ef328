package filetree

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var unsafeRun = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Sanitize makes s safe as a single path segment: accents are folded to their
// base letters, other scripts are transliterated to ASCII and every run of
// remaining characters becomes one underscore.
func Sanitize(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Trim(unsafeRun.ReplaceAllString(unidecode.Unidecode(folded), "_"), "_")
}
