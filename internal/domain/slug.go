package domain

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var deaccent = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify lowercases the input, strips diacritics and collapses every run of
// non-alphanumeric characters into a single hyphen. The result is the base
// slug; the sequence generator disambiguates collisions.
func Slugify(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if folded, _, err := transform.String(deaccent, value); err == nil {
		value = folded
	}

	var b strings.Builder
	b.Grow(len(value))
	lastHyphen := true
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

// DisambiguateSlug maps the sequence assigned to a base slug onto its final
// form: the first claimant keeps the bare slug, later ones get a numeric
// suffix (my-title, my-title-1, my-title-2, ...).
func DisambiguateSlug(base string, seq int64) string {
	if seq <= 1 {
		return base
	}
	return base + "-" + strconv.FormatInt(seq-1, 10)
}
