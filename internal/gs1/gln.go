package gs1

import (
	"math/rand/v2"
	"strings"
)

// GLNLength is the number of digits in a Global Location Number.
const GLNLength = 13

// GLN is a validated 13 digit Global Location Number.
type GLN struct {
	value string
}

// GenerateGLN builds a GLN from a company prefix and an optional location
// reference. An empty locationRef is replaced by random digits filling the
// reference width (12 minus the prefix length).
func GenerateGLN(prefix, locationRef string) (GLN, error) {
	if !ValidatePrefixFormat(prefix) {
		return GLN{}, formatErr("company prefix %q must be %d-%d digits", prefix, MinPrefixLength, MaxPrefixLength)
	}

	width := GLNLength - 1 - len(prefix)
	locationRef = strings.TrimSpace(locationRef)
	if locationRef == "" {
		if width < 1 {
			return GLN{}, formatErr("prefix %q leaves no room for a location reference", prefix)
		}
		locationRef = randomDigits(width)
	}
	if !isDigits(locationRef) {
		return GLN{}, formatErr("location reference %q must be numeric", locationRef)
	}
	if len(locationRef) > width {
		return GLN{}, formatErr("location reference %q exceeds %d digits", locationRef, width)
	}

	code, err := withCheckDigit(prefix+leftPad(locationRef, width), PatternA)
	if err != nil {
		return GLN{}, err
	}
	return GLN{value: code}, nil
}

// ValidateGLN reports whether code is 13 digits with a valid check digit.
func ValidateGLN(code string) bool {
	return len(code) == GLNLength && isDigits(code) && hasValidCheckDigit(code, PatternA)
}

// ParseGLN validates code and returns it as a GLN.
func ParseGLN(code string) (GLN, error) {
	code = strings.TrimSpace(code)
	if !ValidateGLN(code) {
		return GLN{}, formatErr("GLN %q is not a valid 13 digit location code", code)
	}
	return GLN{value: code}, nil
}

func (g GLN) String() string { return g.value }

func (g GLN) Equals(other GLN) bool { return g.value == other.value }

func (g GLN) IsZero() bool { return g.value == "" }

func (g GLN) MarshalText() ([]byte, error) {
	return []byte(g.value), nil
}

func (g *GLN) UnmarshalText(text []byte) error {
	v, err := ParseGLN(string(text))
	if err != nil {
		return err
	}
	*g = v
	return nil
}

func randomDigits(n int) string {
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		sb.WriteByte(byte('0' + rand.IntN(10)))
	}
	return sb.String()
}
