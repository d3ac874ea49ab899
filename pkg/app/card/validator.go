package card

import (
	"github.com/deploymenttheory/go-smartmedia/internal/ftl"
	"github.com/deploymenttheory/go-smartmedia/internal/types"
	"github.com/deploymenttheory/go-smartmedia/pkg/app"
)

// MaxSectorsPerRequest bounds a single read so the result fits comfortably in memory
const MaxSectorsPerRequest = 1 << 16

// Validate validates the session settings
func (s *Session) Validate() error {
	if s.ImagePath == "" {
		return app.NewError(app.ErrCodeInvalidInput, "image path is required", nil)
	}
	if s.Policy != "" {
		if _, err := ftl.ParseWritePolicy(s.Policy); err != nil {
			return app.NewError(app.ErrCodeInvalidInput, "invalid write policy", err)
		}
	}
	if s.WearSkip < 0 {
		return app.NewError(app.ErrCodeInvalidInput, "wear skip must not be negative", nil)
	}
	return nil
}

// Validate validates a format request
func (r *FormatRequest) Validate() error {
	if r.ImagePath == "" {
		return app.NewError(app.ErrCodeInvalidInput, "image path is required", nil)
	}
	if r.DeviceID < 0 || r.DeviceID > 0xFF {
		return app.NewError(app.ErrCodeInvalidInput, "device id must fit in one byte", nil)
	}

	g, err := types.LookupGeometry(byte(r.DeviceID))
	if err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "unsupported device id", err)
	}

	for _, b := range r.BadBlocks {
		if b >= g.TotalBlocks() {
			return app.NewError(app.ErrCodeInvalidInput, "bad block beyond the end of the card", nil)
		}
		if types.Pba(b).IsReserved() {
			return app.NewError(app.ErrCodeInvalidInput, "reserved blocks cannot be marked bad", nil)
		}
	}
	return nil
}

// Validate validates a map request
func (r *MapRequest) Validate() error {
	if err := r.Session.Validate(); err != nil {
		return err
	}
	if r.Zone < -1 {
		return app.NewError(app.ErrCodeInvalidInput, "zone must be -1 (all) or a zone number", nil)
	}
	return nil
}

// Validate validates a read request
func (r *ReadRequest) Validate() error {
	if err := r.Session.Validate(); err != nil {
		return err
	}
	if err := r.Range.Validate(); err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid sector range", err)
	}
	if r.Range.Count > MaxSectorsPerRequest {
		return app.NewError(app.ErrCodeInvalidInput, "too many sectors in one read", nil)
	}
	return nil
}

// Validate validates a write request
func (r *WriteRequest) Validate() error {
	if err := r.Session.Validate(); err != nil {
		return err
	}
	if r.Data == nil && r.InputPath == "" {
		return app.NewError(app.ErrCodeInvalidInput, "input file is required", nil)
	}
	return nil
}

// Validate validates a stats request
func (r *StatsRequest) Validate() error {
	return r.Session.Validate()
}

// Validate validates an info request
func (r *InfoRequest) Validate() error {
	return r.Session.Validate()
}
