// Package normalize canonicalizes raw query text before any retrieval call.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	reconerrors "vocab-reconciler/internal/common/errors"
)

// Normalize lowercases, strips diacritics, collapses internal whitespace and
// trims. It is pure and deterministic. Strings that normalize to the empty
// string are rejected with an EMPTY_QUERY error.
func Normalize(text string) (string, error) {
	lowered := strings.ToLower(text)

	stripped, _, err := transform.String(stripper(), lowered)
	if err != nil {
		// Undecodable input keeps its original runes; normalization is
		// best-effort, not a validator.
		stripped = lowered
	}

	collapsed := strings.Join(strings.Fields(stripped), " ")
	if collapsed == "" {
		return "", reconerrors.NewEmptyQueryError(text)
	}

	return collapsed, nil
}

// stripper decomposes to NFD, drops combining marks and recomposes. Built per
// call: norm transformers carry state and are not safe for concurrent reuse.
func stripper() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}
