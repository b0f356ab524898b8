package gs1

// Trade item number lengths.
const (
	GTINMinLength = 8
	GTIN14Length  = 14
)

// ValidateGTIN reports whether code is an 8 to 14 digit trade item number whose
// last digit is the check digit for its length.
func ValidateGTIN(code string) bool {
	if len(code) < GTINMinLength || len(code) > GTIN14Length || !isDigits(code) {
		return false
	}
	return hasValidCheckDigit(code, PatternForLength(len(code)))
}

// NormalizeGTIN left-pads a valid trade item number to 14 digits.
func NormalizeGTIN(code string) (string, error) {
	if !ValidateGTIN(code) {
		return "", formatErr("GTIN %q is not a valid trade item number", code)
	}
	return leftPad(code, GTIN14Length), nil
}
