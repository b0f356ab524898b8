package gs1

import (
	"log/slog"
	"regexp"
	"strings"
)

// SGTINScheme is the EPC URI prefix of serialized trade item identifiers.
const SGTINScheme = "urn:epc:id:sgtin:"

// MaxItemRefLength bounds the item reference carried in an SGTIN URI.
const MaxItemRefLength = 6

var sgtinPattern = regexp.MustCompile(`^urn:epc:id:sgtin:(\d{6,12})\.(\d{1,6})\.(.+)$`)

// SGTIN is a serialized trade item number in EPC URI form.
type SGTIN struct {
	prefix  string
	itemRef string
	serial  string
}

// GenerateSGTIN encodes gtin and serial as an SGTIN. The item reference is read
// from the 14 digit form of gtin right after the indicator digit and the
// prefix. An empty prefix takes the deprecated fallback width and logs a warning.
func GenerateSGTIN(gtin, serial, prefix string) (SGTIN, error) {
	normalized, err := NormalizeGTIN(strings.TrimSpace(gtin))
	if err != nil {
		return SGTIN{}, err
	}
	if serial == "" {
		return SGTIN{}, formatErr("serial must not be empty")
	}

	if prefix == "" {
		slog.Warn("No company prefix supplied for SGTIN, assuming fallback width",
			"gtin", normalized,
			"prefixLength", FallbackPrefixLength)
		prefix = normalized[1 : 1+FallbackPrefixLength]
	} else if !ValidatePrefixFormat(prefix) {
		return SGTIN{}, formatErr("company prefix %q must be %d-%d digits", prefix, MinPrefixLength, MaxPrefixLength)
	}

	itemRef := normalized[1+len(prefix) : GTIN14Length-1]
	if len(itemRef) == 0 || len(itemRef) > MaxItemRefLength {
		return SGTIN{}, formatErr("item reference %q must be 1-%d digits", itemRef, MaxItemRefLength)
	}

	return SGTIN{prefix: prefix, itemRef: itemRef, serial: serial}, nil
}

// ParseSGTIN decodes an SGTIN EPC URI.
func ParseSGTIN(uri string) (SGTIN, error) {
	m := sgtinPattern.FindStringSubmatch(strings.TrimSpace(uri))
	if m == nil {
		return SGTIN{}, formatErr("%q is not an SGTIN URI", uri)
	}
	if len(m[1])+len(m[2]) > MaxPrefixLength {
		return SGTIN{}, formatErr("prefix and item reference of %q exceed %d digits", uri, MaxPrefixLength)
	}
	return SGTIN{prefix: m[1], itemRef: m[2], serial: m[3]}, nil
}

// IsSGTIN reports whether s parses as an SGTIN URI.
func IsSGTIN(s string) bool {
	_, err := ParseSGTIN(s)
	return err == nil
}

func (s SGTIN) CompanyPrefix() string { return s.prefix }

func (s SGTIN) ItemRef() string { return s.itemRef }

func (s SGTIN) Serial() string { return s.serial }

// URI returns urn:epc:id:sgtin:<prefix>.<itemRef>.<serial>.
func (s SGTIN) URI() string {
	if s.prefix == "" {
		return ""
	}
	return SGTINScheme + s.prefix + "." + s.itemRef + "." + s.serial
}

func (s SGTIN) String() string { return s.URI() }

// GTIN rebuilds a 14 digit trade item number with indicator digit 0. The
// original indicator is not carried in the URI.
func (s SGTIN) GTIN() (string, error) {
	base := "0" + s.prefix + s.itemRef
	if len(base) > GTIN14Length-1 {
		return "", formatErr("SGTIN %q does not fit a 14 digit GTIN", s.URI())
	}
	return withCheckDigit(leftPad(base, GTIN14Length-1), PatternB)
}

func (s SGTIN) Equals(other SGTIN) bool { return s == other }

func (s SGTIN) IsZero() bool { return s.prefix == "" }

func (s SGTIN) MarshalText() ([]byte, error) {
	return []byte(s.URI()), nil
}

func (s *SGTIN) UnmarshalText(text []byte) error {
	v, err := ParseSGTIN(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
