package gs1

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateGLN(t *testing.T) {
	tests := []struct {
		name        string
		prefix      string
		locationRef string
		want        string
		wantErr     bool
	}{
		{name: "reference fills width", prefix: "123456789", locationRef: "012", want: "1234567890120"},
		{name: "reference is zero padded", prefix: "123456789", locationRef: "12", want: "1234567890120"},
		{name: "prefix too short", prefix: "12345", locationRef: "1", wantErr: true},
		{name: "prefix too long", prefix: "1234567890123", locationRef: "1", wantErr: true},
		{name: "non numeric prefix", prefix: "12345X", locationRef: "1", wantErr: true},
		{name: "reference too long", prefix: "123456789", locationRef: "1234", wantErr: true},
		{name: "non numeric reference", prefix: "123456", locationRef: "12A", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gln, err := GenerateGLN(tt.prefix, tt.locationRef)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, gln.String())
			assert.True(t, ValidateGLN(gln.String()))
		})
	}
}

func TestGenerateGLN_RandomReference(t *testing.T) {
	for _, prefix := range []string{"123456", "12345678", "12345678901"} {
		gln, err := GenerateGLN(prefix, "")
		require.NoError(t, err)
		assert.Len(t, gln.String(), GLNLength)
		assert.True(t, strings.HasPrefix(gln.String(), prefix))
		assert.True(t, ValidateGLN(gln.String()))
	}
}

func TestGenerateGLN_TwelveDigitPrefixNeedsReference(t *testing.T) {
	_, err := GenerateGLN("123456789012", "")
	assert.True(t, errors.Is(err, ErrFormat))
}

func TestValidateGLN(t *testing.T) {
	assert.True(t, ValidateGLN("1234567890120"))
	assert.False(t, ValidateGLN("1234567890121"))
	assert.False(t, ValidateGLN("123456789012"))
	assert.False(t, ValidateGLN("12345678901200"))
	assert.False(t, ValidateGLN("123456789012A"))
	assert.False(t, ValidateGLN(""))
}

func TestGLN_TextRoundTrip(t *testing.T) {
	var g GLN
	require.NoError(t, g.UnmarshalText([]byte("1234567890120")))
	out, err := g.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1234567890120", string(out))

	assert.Error(t, g.UnmarshalText([]byte("1234567890129")))
}

func TestValidateGTIN(t *testing.T) {
	tests := []struct {
		code  string
		valid bool
	}{
		{"12345678", true},
		{"123456789015", true},
		{"1234567890120", true},
		{"12345678901231", true},
		{"12345678901230", false},
		{"1234567", false},
		{"123456789012345", false},
		{"1234567A", false},
		{"12345679", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidateGTIN(tt.code))
		})
	}
}

func TestNormalizeGTIN(t *testing.T) {
	got, err := NormalizeGTIN("1234567890120")
	require.NoError(t, err)
	assert.Equal(t, "01234567890120", got)

	_, err = NormalizeGTIN("1234567890121")
	assert.True(t, errors.Is(err, ErrFormat))
}

func TestCompanyPrefix(t *testing.T) {
	assert.True(t, ValidatePrefixFormat("123456"))
	assert.True(t, ValidatePrefixFormat("123456789012"))
	assert.False(t, ValidatePrefixFormat("12345"))
	assert.False(t, ValidatePrefixFormat("1234567890123"))
	assert.False(t, ValidatePrefixFormat("12345a"))

	p, err := NewCompanyPrefix(" 0614141 ")
	require.NoError(t, err)
	assert.Equal(t, "0614141", p.String())
	assert.Equal(t, 7, p.Len())
	assert.True(t, p.Equals(MustNewCompanyPrefix("0614141")))

	_, err = NewCompanyPrefix("abc")
	assert.True(t, errors.Is(err, ErrFormat))
}
