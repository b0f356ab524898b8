package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to ProductStatus
		wantErr  bool
	}{
		{StatusStolen, StatusActive, true},
		{StatusStolen, StatusSample, true},
		{StatusLost, StatusActive, true},
		{StatusLost, StatusSample, true},
		{StatusDispensing, StatusActive, true},
		{StatusActive, StatusLost, false},
		{StatusStolen, StatusDestroyed, false},
		{StatusDispensing, StatusSample, false},
		{StatusDispensing, StatusDispensed, false},
		{StatusQuarantined, StatusActive, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.to)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidTransition))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseProductStatus(t *testing.T) {
	s, err := ParseProductStatus(" quarantined ")
	require.NoError(t, err)
	assert.Equal(t, StatusQuarantined, s)

	_, err = ParseProductStatus("MISPLACED")
	assert.True(t, errors.Is(err, ErrInvalidStatus))
}

func TestNewStatusRecord(t *testing.T) {
	key := StatusKey{BatchID: "B-1"}
	rec, err := NewStatusRecord(key, StatusRecalled, StatusActive, "user-1", "recall 42", "", "")
	require.NoError(t, err)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "B-1", rec.BatchID)
	assert.Equal(t, StatusRecalled, rec.Status)
	assert.Equal(t, StatusActive, rec.PreviousStatus)
	require.Len(t, rec.GetDomainEvents(), 1)
	assert.Equal(t, "pharma.status.changed", rec.GetDomainEvents()[0].EventType())

	rec.ClearDomainEvents()
	assert.Empty(t, rec.GetDomainEvents())
}

func TestNewStatusRecord_Rejects(t *testing.T) {
	_, err := NewStatusRecord(StatusKey{}, StatusActive, "", "user-1", "", "", "")
	assert.ErrorIs(t, err, ErrMissingStatusKey)

	_, err = NewStatusRecord(StatusKey{SGTIN: "x"}, ProductStatus("BROKEN"), "", "user-1", "", "", "")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
