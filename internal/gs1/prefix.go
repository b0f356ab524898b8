package gs1

import "strings"

// Company prefix widths accepted by every encoder in this package.
const (
	MinPrefixLength = 6
	MaxPrefixLength = 12

	// FallbackPrefixLength is assumed when callers do not supply the real
	// company prefix. The result is frequently wrong.
	//
	// Deprecated: always pass the assigned company prefix.
	FallbackPrefixLength = 8
)

// CompanyPrefix is a validated GS1 company prefix.
type CompanyPrefix struct {
	value string
}

// ValidatePrefixFormat reports whether s is 6 to 12 digits.
func ValidatePrefixFormat(s string) bool {
	return len(s) >= MinPrefixLength && len(s) <= MaxPrefixLength && isDigits(s)
}

// NewCompanyPrefix validates s and returns it as a CompanyPrefix.
func NewCompanyPrefix(s string) (CompanyPrefix, error) {
	s = strings.TrimSpace(s)
	if !ValidatePrefixFormat(s) {
		return CompanyPrefix{}, formatErr("company prefix %q must be %d-%d digits", s, MinPrefixLength, MaxPrefixLength)
	}
	return CompanyPrefix{value: s}, nil
}

// MustNewCompanyPrefix panics on invalid input (use for constants only)
func MustNewCompanyPrefix(s string) CompanyPrefix {
	p, err := NewCompanyPrefix(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p CompanyPrefix) String() string { return p.value }

// Len returns the number of digits in the prefix.
func (p CompanyPrefix) Len() int { return len(p.value) }

// IsZero reports whether p was never set.
func (p CompanyPrefix) IsZero() bool { return p.value == "" }

func (p CompanyPrefix) Equals(other CompanyPrefix) bool { return p.value == other.value }

func (p CompanyPrefix) MarshalText() ([]byte, error) {
	return []byte(p.value), nil
}

func (p *CompanyPrefix) UnmarshalText(text []byte) error {
	v, err := NewCompanyPrefix(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
