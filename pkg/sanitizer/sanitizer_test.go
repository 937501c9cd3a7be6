package sanitizer

import "testing"

func TestSanitizeSpotNumber(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"A-101", "A-101"},
		{"a-101", "A-101"},
		{"  b12 ", "B12"},
		{"a 101", "A-101"},
		{"a--101", "A-101"},
		{"a_101!", "A-101"},
		{"--a1--", "A1"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := SanitizeSpotNumber(tc.input); got != tc.want {
			t.Errorf("SanitizeSpotNumber(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestSanitizeEmail(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"Ada@Example.COM", "ada@example.com"},
		{"  ada@example.com  ", "ada@example.com"},
		{"ada@example.com", "ada@example.com"},
	}

	for _, tc := range cases {
		if got := SanitizeEmail(tc.input); got != tc.want {
			t.Errorf("SanitizeEmail(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestTrimAndNormalize(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"Ada Lovelace", "Ada Lovelace"},
		{"  Ada   Lovelace  ", "Ada Lovelace"},
		{"Ada\tLovelace", "Ada Lovelace"},
		{"Ada\n Lovelace", "Ada Lovelace"},
		{"   ", ""},
		{"", ""},
	}

	for _, tc := range cases {
		if got := TrimAndNormalize(tc.input); got != tc.want {
			t.Errorf("TrimAndNormalize(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
