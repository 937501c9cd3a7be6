package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reSpotNumber = regexp.MustCompile(`[^0-9\p{L}\-]+`)
	reMultiDash  = regexp.MustCompile(`-+`)
)

// SanitizeSpotNumber normalizes a displayed spot label ("A1", "b-12 ") into
// its canonical uppercase form used for uniqueness checks.
func SanitizeSpotNumber(input string) string {
	p := Pipeline{
		strings.TrimSpace,
		func(s string) string { return reSpotNumber.ReplaceAllString(s, "-") },
		func(s string) string { return reMultiDash.ReplaceAllString(s, "-") },
		func(s string) string { return strings.Trim(s, "-") },
		strings.ToUpper,
	}
	return p.Apply(input)
}

func SanitizeEmail(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

func SanitizeName(input string) string {
	return TrimAndNormalize(input)
}
