package app

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSectorRange(t *testing.T) {
	tests := []struct {
		name    string
		r       SectorRange
		wantErr bool
		str     string
	}{
		{"single sector", SectorRange{Sector: 7, Count: 1}, false, "sector 7"},
		{"run", SectorRange{Sector: 16, Count: 16}, false, "sectors 16-31"},
		{"reaches end of space", SectorRange{Sector: ^uint32(0), Count: 1}, false, "sector 4294967295"},
		{"empty", SectorRange{Sector: 3}, true, ""},
		{"wraps", SectorRange{Sector: ^uint32(0), Count: 2}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.False(t, tt.r.IsEmpty())
			assert.Equal(t, tt.str, tt.r.String())
		})
	}
}

func TestCommonError(t *testing.T) {
	cause := errors.New("transfer aborted")
	err := NewError(ErrCodeTransport, "read failed", cause)

	assert.Equal(t, "read failed: transfer aborted", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "nothing to write", NewError(ErrCodeInvalidInput, "nothing to write", nil).Error())

	wrapped := fmt.Errorf("command: %w", err)
	assert.Equal(t, ErrCodeTransport, ErrorCode(wrapped))
	assert.Equal(t, "", ErrorCode(cause))
	assert.Equal(t, "", ErrorCode(nil))
}
