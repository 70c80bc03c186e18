package model

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// PairKey computes the canonical key for an unordered node pair.
//
// Both ids are NFC normalized so that visually identical identifiers always
// hash to the same pair, then ordered with the smaller id first. The key is
// symmetric: PairKey(a, b) == PairKey(b, a).
func PairKey(a, b string) string {
	a, b = OrderedPair(a, b)
	return a + "|" + b
}

// OrderedPair returns the two ids in canonical order: NFC normalized, the
// smaller first. Vetting rows store node ids in this order so the key and
// the columns always agree.
func OrderedPair(a, b string) (string, string) {
	na := norm.NFC.String(a)
	nb := norm.NFC.String(b)
	if strings.Compare(na, nb) > 0 {
		return nb, na
	}
	return na, nb
}
