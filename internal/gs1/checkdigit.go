// Package gs1 encodes, decodes and validates the GS1 identifier families used
// for pharmaceutical serialization: company prefixes, GLNs, GTINs, SGTINs and SSCCs.
package gs1

import (
	"errors"
	"fmt"
)

// ErrFormat is returned when an identifier or one of its parts is malformed.
var ErrFormat = errors.New("invalid GS1 format")

func formatErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFormat, fmt.Sprintf(format, args...))
}

// WeightPattern selects how the modulo-10 weights alternate across the base.
type WeightPattern int

const (
	// PatternA weighs the rightmost base digit by 1, then 3, 1, 3...
	// Used by GLNs and 8, 12 and 13 digit trade item numbers.
	PatternA WeightPattern = iota
	// PatternB weighs the rightmost base digit by 3, then 1, 3, 1...
	// Used by 14 digit trade item numbers and 18 digit SSCCs.
	PatternB
)

func (p WeightPattern) String() string {
	if p == PatternB {
		return "B"
	}
	return "A"
}

// PatternForLength returns the weight pattern for a code of the given total
// length, check digit included. The choice depends on the target length only.
func PatternForLength(n int) WeightPattern {
	switch n {
	case GTIN14Length, SSCCLength:
		return PatternB
	default:
		return PatternA
	}
}

// CheckDigit computes the GS1 modulo-10 check digit over base.
func CheckDigit(base string, p WeightPattern) (int, error) {
	if base == "" || !isDigits(base) {
		return 0, formatErr("check digit base %q must be a non-empty digit string", base)
	}

	sum := 0
	for pos := 0; pos < len(base); pos++ {
		d := int(base[len(base)-1-pos] - '0')
		if (pos%2 == 0) == (p == PatternA) {
			sum += d
		} else {
			sum += d * 3
		}
	}
	return (10 - sum%10) % 10, nil
}

// hasValidCheckDigit reports whether the last digit of code is the check digit
// of the rest under the given pattern. code must be all digits.
func hasValidCheckDigit(code string, p WeightPattern) bool {
	if len(code) < 2 {
		return false
	}
	want, err := CheckDigit(code[:len(code)-1], p)
	if err != nil {
		return false
	}
	return int(code[len(code)-1]-'0') == want
}

func withCheckDigit(base string, p WeightPattern) (string, error) {
	cd, err := CheckDigit(base, p)
	if err != nil {
		return "", err
	}
	return base + string(rune('0'+cd)), nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func leftPad(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}
