package cpv

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes are organization-form tails that carry no identity. Buyer
// names from different sources disagree on them constantly.
var legalSuffixes = map[string]bool{
	"ltd": true, "limited": true, "plc": true, "clg": true, "dac": true,
	"teo": true, "cio": true, "llp": true, "inc": true, "gmbh": true,
	"sa": true, "sarl": true, "bv": true,
}

// foldTransformer strips diacritics after NFD decomposition and lower-cases,
// so "Comhairle Contae Átha Cliath Theas" and its ASCII renderings collide.
var foldTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	cases.Lower(language.Und),
	norm.NFC,
)

// CanonicalBuyerKey reduces a buyer name to a stable matching key:
// diacritics removed, case folded, punctuation collapsed to spaces, legal
// suffixes dropped, whitespace normalized. Reconciliation requires exact
// equality of these keys.
func CanonicalBuyerKey(name string) string {
	folded, _, err := transform.String(foldTransformer, name)
	if err != nil {
		// Transform only fails on invalid UTF-8; fall back to a plain
		// lowercase so the key is still deterministic.
		folded = strings.ToLower(name)
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	words := strings.Fields(b.String())
	out := words[:0]
	for _, w := range words {
		if legalSuffixes[w] {
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}

// SameBuyer reports whether two buyer names canonicalize to the same key.
func SameBuyer(a, b string) bool {
	ka, kb := CanonicalBuyerKey(a), CanonicalBuyerKey(b)
	return ka != "" && ka == kb
}
