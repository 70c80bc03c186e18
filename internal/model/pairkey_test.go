package model

import "testing"

func TestPairKey_Symmetric(t *testing.T) {
	if PairKey("1.2", "1.10") != PairKey("1.10", "1.2") {
		t.Error("pair key must not depend on argument order")
	}
}

func TestPairKey_SmallerFirst(t *testing.T) {
	if got := PairKey("b", "a"); got != "a|b" {
		t.Errorf("PairKey(b, a) = %q, want %q", got, "a|b")
	}
}

func TestPairKey_UnicodeNormalization(t *testing.T) {
	// "é" composed vs "e" + combining acute: same key either way.
	composed := "café"
	decomposed := "café"
	if PairKey(composed, "x") != PairKey(decomposed, "x") {
		t.Error("NFC-equivalent ids must produce the same pair key")
	}
}

func TestOrderedPair(t *testing.T) {
	a, b := OrderedPair("2", "10")
	if a != "10" || b != "2" {
		t.Errorf("OrderedPair(2, 10) = (%s, %s), want lexicographic (10, 2)", a, b)
	}
}
