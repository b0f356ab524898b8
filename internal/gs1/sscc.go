package gs1

import (
	"log/slog"
	"regexp"
	"strings"
)

// SSCC layout constants.
const (
	SSCCLength = 18
	SSCCScheme = "urn:epc:id:sscc:"
)

var ssccPattern = regexp.MustCompile(`^urn:epc:id:sscc:(\d{6,12})\.(\d{5,11})$`)

// SSCC is a serial shipping container code: extension digit, company prefix,
// serial reference and a Pattern B check digit.
type SSCC struct {
	prefix    string
	extension byte
	serialRef string
}

// GenerateSSCC builds an SSCC. serialRef is zero-padded to 16 minus the prefix
// length; an empty serialRef is replaced by random digits of that width.
func GenerateSSCC(prefix, serialRef string, extension int) (SSCC, error) {
	if !ValidatePrefixFormat(prefix) {
		return SSCC{}, formatErr("company prefix %q must be %d-%d digits", prefix, MinPrefixLength, MaxPrefixLength)
	}
	if extension < 0 || extension > 9 {
		return SSCC{}, formatErr("extension digit %d must be 0-9", extension)
	}

	width := serialRefWidth(prefix)
	serialRef = strings.TrimSpace(serialRef)
	if serialRef == "" {
		serialRef = randomDigits(width)
	}
	if !isDigits(serialRef) {
		return SSCC{}, formatErr("serial reference %q must be numeric", serialRef)
	}
	if len(serialRef) > width {
		return SSCC{}, formatErr("serial reference %q exceeds %d digits", serialRef, width)
	}

	return SSCC{
		prefix:    prefix,
		extension: byte('0' + extension),
		serialRef: leftPad(serialRef, width),
	}, nil
}

// ValidateSSCC reports whether code is 18 digits with a valid check digit.
func ValidateSSCC(code string) bool {
	return len(code) == SSCCLength && isDigits(code) && hasValidCheckDigit(code, PatternB)
}

// SSCCFromCode splits an 18 digit code using the given company prefix, which
// must appear right after the extension digit. An empty prefix takes the
// deprecated fallback width and logs a warning.
func SSCCFromCode(code, prefix string) (SSCC, error) {
	code = strings.TrimSpace(code)
	if !ValidateSSCC(code) {
		return SSCC{}, formatErr("SSCC %q is not a valid 18 digit code", code)
	}

	if prefix == "" {
		slog.Warn("No company prefix supplied for SSCC, assuming fallback width",
			"sscc", code,
			"prefixLength", FallbackPrefixLength)
		prefix = code[1 : 1+FallbackPrefixLength]
	} else if !ValidatePrefixFormat(prefix) {
		return SSCC{}, formatErr("company prefix %q must be %d-%d digits", prefix, MinPrefixLength, MaxPrefixLength)
	} else if code[1:1+len(prefix)] != prefix {
		return SSCC{}, formatErr("SSCC %q does not carry company prefix %q", code, prefix)
	}

	return SSCC{
		prefix:    prefix,
		extension: code[0],
		serialRef: code[1+len(prefix) : SSCCLength-1],
	}, nil
}

// ParseSSCC decodes urn:epc:id:sscc:<prefix>.<extension><serialRef>.
func ParseSSCC(uri string) (SSCC, error) {
	m := ssccPattern.FindStringSubmatch(strings.TrimSpace(uri))
	if m == nil {
		return SSCC{}, formatErr("%q is not an SSCC URI", uri)
	}
	prefix, ref := m[1], m[2]
	if len(prefix)+len(ref) != SSCCLength-1 {
		return SSCC{}, formatErr("prefix and serial reference of %q must total %d digits", uri, SSCCLength-1)
	}
	return SSCC{prefix: prefix, extension: ref[0], serialRef: ref[1:]}, nil
}

func serialRefWidth(prefix string) int {
	return SSCCLength - 2 - len(prefix)
}

func (s SSCC) CompanyPrefix() string { return s.prefix }

// Extension returns the extension digit.
func (s SSCC) Extension() int { return int(s.extension - '0') }

// SerialRef returns the serial reference without the extension digit.
func (s SSCC) SerialRef() string { return s.serialRef }

// Code returns the 18 digit form including the check digit.
func (s SSCC) Code() string {
	if s.prefix == "" {
		return ""
	}
	code, err := withCheckDigit(string(s.extension)+s.prefix+s.serialRef, PatternB)
	if err != nil {
		return ""
	}
	return code
}

// URI returns the EPC form. The extension digit leads the serial reference.
func (s SSCC) URI() string {
	if s.prefix == "" {
		return ""
	}
	return SSCCScheme + s.prefix + "." + string(s.extension) + s.serialRef
}

func (s SSCC) String() string { return s.URI() }

func (s SSCC) Equals(other SSCC) bool { return s == other }

func (s SSCC) IsZero() bool { return s.prefix == "" }

func (s SSCC) MarshalText() ([]byte, error) {
	return []byte(s.URI()), nil
}

func (s *SSCC) UnmarshalText(text []byte) error {
	v, err := ParseSSCC(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
