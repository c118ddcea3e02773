package store

import "testing"

func TestNormalizePairingCode(t *testing.T) {
	cases := []struct {
		in       string
		wantCode string
		wantOK   bool
	}{
		{"ab-cd-23", "ABCD23", true},
		{"ABCD23", "ABCD23", true},
		{"ab cd 23", "ABCD23", true},
		{"short", "", false},
		{"toolongcode", "", false},
		{"ab0cd2", "", false}, // '0' and '1' are excluded from the alphabet
	}
	for _, c := range cases {
		got, ok := NormalizePairingCode(c.in)
		if ok != c.wantOK || (ok && got != c.wantCode) {
			t.Errorf("NormalizePairingCode(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.wantCode, c.wantOK)
		}
	}
}
