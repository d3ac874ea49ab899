package app

import (
	"errors"
	"fmt"
)

// SectorRange represents a run of logical sectors across commands
type SectorRange struct {
	Sector uint32
	Count  uint32
}

// Validate ensures the range does not wrap the 32-bit sector space
func (r *SectorRange) Validate() error {
	if r.Count == 0 {
		return errors.New("sector count must be at least 1")
	}
	if uint64(r.Sector)+uint64(r.Count) > 1<<32 {
		return fmt.Errorf("sector range %d+%d overflows", r.Sector, r.Count)
	}
	return nil
}

// IsEmpty returns true if no sectors are selected
func (r *SectorRange) IsEmpty() bool {
	return r.Count == 0
}

// String returns a string representation of the range
func (r *SectorRange) String() string {
	if r.Count == 1 {
		return fmt.Sprintf("sector %d", r.Sector)
	}
	return fmt.Sprintf("sectors %d-%d", r.Sector, uint64(r.Sector)+uint64(r.Count)-1)
}

// CommonError represents application-level errors
type CommonError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CommonError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CommonError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeCardAccess     = "CARD_ACCESS"
	ErrCodeTransport      = "TRANSPORT"
	ErrCodeWriteProtected = "WRITE_PROTECTED"
	ErrCodeMediumFull     = "MEDIUM_FULL"
	ErrCodeBadBlock       = "BAD_BLOCK"
	ErrCodeDeviceFaulted  = "DEVICE_FAULTED"
	ErrCodePermission     = "PERMISSION_DENIED"
)

// NewError creates a new CommonError
func NewError(code, message string, cause error) *CommonError {
	return &CommonError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrorCode returns the code of the first CommonError in err's chain, or "".
func ErrorCode(err error) string {
	var ce *CommonError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
