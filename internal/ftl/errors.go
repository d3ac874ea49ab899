package ftl

import (
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-smartmedia/internal/types"
)

var (
	// ErrMediumFull is returned when a zone has no free physical block left.
	ErrMediumFull = errors.New("no free physical block in zone")
	// ErrMapInconsistency is returned when the medium commits a write to a
	// block the table already assigns to another logical block.
	ErrMapInconsistency = errors.New("physical block allocated twice")
	// ErrBadBlock is returned when the medium rejects a program operation.
	ErrBadBlock = errors.New("medium rejected block program")
	// ErrDeviceFaulted is returned for writes after a map inconsistency.
	ErrDeviceFaulted = errors.New("device faulted, reattach required")
	// ErrWriteProtected is returned for writes to a sealed card.
	ErrWriteProtected = errors.New("medium is write protected")
	// ErrOutOfRange is returned when a request extends past the usable capacity.
	ErrOutOfRange = errors.New("sector range out of bounds")
	// ErrNotAttached is returned after Detach.
	ErrNotAttached = errors.New("device is not attached")
	// ErrShortBuffer is returned when a caller buffer cannot hold the request.
	ErrShortBuffer = errors.New("buffer shorter than request")
)

// TransportError wraps a failed raw medium operation. It is never retried here.
type TransportError struct {
	Op      string
	Address uint64
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s at 0x%x: %v", e.Op, e.Address, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MapError reports a failure to build the translation table for a zone.
type MapError struct {
	Zone uint32
	Err  error
}

func (e *MapError) Error() string {
	return fmt.Sprintf("failed to build map for zone %d: %v", e.Zone, e.Err)
}

func (e *MapError) Unwrap() error {
	return e.Err
}

// EccMismatch records a half-page whose data no longer matches its stored code.
// Mismatches are reported but never fail a request.
type EccMismatch struct {
	Pba        types.Pba `json:"pba" yaml:"pba"`
	Page       uint32    `json:"page" yaml:"page"`
	FirstHalf  bool      `json:"first_half" yaml:"first_half"`
	SecondHalf bool      `json:"second_half" yaml:"second_half"`
}

func (e EccMismatch) Error() string {
	var halves string
	switch {
	case e.FirstHalf && e.SecondHalf:
		halves = "both halves"
	case e.FirstHalf:
		halves = "first half"
	default:
		halves = "second half"
	}
	return fmt.Sprintf("ecc mismatch in %s page %d (%s)", e.Pba, e.Page, halves)
}
