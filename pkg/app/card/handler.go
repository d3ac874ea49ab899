// Package card implements the command handlers that operate on SmartMedia
// card images through the flash translation layer.
package card

import (
	"errors"
	"fmt"
	"os"

	"github.com/deploymenttheory/go-smartmedia/internal/ftl"
	"github.com/deploymenttheory/go-smartmedia/internal/medium"
	"github.com/deploymenttheory/go-smartmedia/internal/types"
	"github.com/deploymenttheory/go-smartmedia/pkg/app"
)

// Format creates a blank card image
func Format(ctx *app.Context, req *FormatRequest) (*FormatResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	bad := make([]types.Pba, len(req.BadBlocks))
	for i, b := range req.BadBlocks {
		bad[i] = types.Pba(b)
	}

	ctx.Log(fmt.Sprintf("Formatting %s as device 0x%02x", req.ImagePath, req.DeviceID))
	c, err := medium.CreateImage(req.ImagePath, medium.FormatOptions{
		DeviceID:     byte(req.DeviceID),
		WriteProtect: req.WriteProtect,
		BadBlocks:    bad,
	})
	if err != nil {
		return nil, classify("failed to create card image", err)
	}
	defer c.Close()

	return &FormatResponse{
		ImagePath: req.ImagePath,
		Geometry:  NewGeometryInfo(c.Geometry()),
		BadBlocks: req.BadBlocks,
		Protected: req.WriteProtect,
	}, nil
}

// Devices lists every device id a card image can be formatted as
func Devices(ctx *app.Context) *DevicesResponse {
	known := types.KnownGeometries()
	resp := &DevicesResponse{Devices: make([]GeometryInfo, 0, len(known))}
	for _, g := range known {
		resp.Devices = append(resp.Devices, NewGeometryInfo(g))
	}
	ctx.Log(fmt.Sprintf("%d device ids known", len(resp.Devices)))
	return resp
}

// Info attaches a card and reports its capacity and map usage
func Info(ctx *app.Context, req *InfoRequest) (*InfoResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	c, d, err := openSession(ctx, req.Session)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	sectors, size, err := d.ReportCapacity()
	if err != nil {
		return nil, classify("failed to read capacity", err)
	}
	zones, err := d.ZoneReport()
	if err != nil {
		return nil, classify("failed to read zone usage", err)
	}

	return &InfoResponse{
		ImagePath:      req.Session.ImagePath,
		SessionID:      d.Session().String(),
		Policy:         d.Options().Policy.String(),
		Geometry:       NewGeometryInfo(d.Geometry()),
		Sectors:        sectors,
		SectorSize:     size,
		CapacityBytes:  sectors * uint64(size),
		WriteProtected: d.IsWriteProtected(),
		MappedBlocks:   d.Stats().MappedBlocks,
		Zones:          zones,
		Wear:           c.Wear(),
	}, nil
}

// Map dumps the physical side of the translation table
func Map(ctx *app.Context, req *MapRequest) (*MapResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	c, d, err := openSession(ctx, req.Session)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	g := d.Geometry()
	if req.Zone >= int(g.Zones()) {
		return nil, app.NewError(app.ErrCodeInvalidInput, fmt.Sprintf("card has %d zones", g.Zones()), nil)
	}

	resp := &MapResponse{ImagePath: req.Session.ImagePath}
	for p := uint32(0); p < g.TotalBlocks(); p++ {
		pba := types.Pba(p)
		zone := g.ZoneOf(pba)
		if req.Zone >= 0 && zone != uint32(req.Zone) {
			continue
		}
		e, err := d.Owner(pba)
		if err != nil {
			return nil, classify("failed to read map", err)
		}
		if req.MappedOnly && !e.IsMapped() {
			continue
		}

		entry := MapEntry{Pba: p, Zone: zone, State: e.Kind().String()}
		if lba, ok := e.Lba(); ok {
			v := uint32(lba)
			entry.Lba = &v
			resp.Mapped++

			rel, _, err := d.ZoneRelative(pba)
			if err != nil {
				return nil, classify("failed to read map", err)
			}
			entry.ZoneLba = &rel
		}
		resp.Entries = append(resp.Entries, entry)
	}
	return resp, nil
}

// Read reads a range of sectors, optionally saving them to a file
func Read(ctx *app.Context, req *ReadRequest) (*ReadResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	c, d, err := openSession(ctx, req.Session)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	size := d.Geometry().PageSize()
	buf := make([]byte, uint64(req.Range.Count)*uint64(size))
	ctx.Log(fmt.Sprintf("Reading %s", req.Range.String()))
	if err := d.ReadSectors(req.Range.Sector, req.Range.Count, buf); err != nil {
		return nil, classify("read failed", err)
	}

	if req.OutputPath != "" {
		if err := os.WriteFile(req.OutputPath, buf, 0o644); err != nil {
			return nil, classify("failed to save sectors", err)
		}
	}

	return &ReadResponse{
		Sector:     req.Range.Sector,
		Count:      req.Range.Count,
		Bytes:      len(buf),
		OutputPath: req.OutputPath,
		ZeroFilled: d.Stats().ZeroFilled,
		Mismatches: d.EccMismatches(),
		Data:       buf,
	}, nil
}

// Write writes data at a sector, padding the last sector with zeros
func Write(ctx *app.Context, req *WriteRequest) (*WriteResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	data := req.Data
	if data == nil {
		var err error
		data, err = os.ReadFile(req.InputPath)
		if err != nil {
			return nil, classify("failed to read input file", err)
		}
	}
	if len(data) == 0 {
		return nil, app.NewError(app.ErrCodeInvalidInput, "nothing to write", nil)
	}

	c, d, err := openSession(ctx, req.Session)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	size := int(d.Geometry().PageSize())
	padded := (size - len(data)%size) % size
	if padded > 0 {
		data = append(append([]byte(nil), data...), make([]byte, padded)...)
	}
	count := uint32(len(data) / size)

	ctx.Log(fmt.Sprintf("Writing %d sectors at %d", count, req.Sector))
	if err := d.WriteSectors(req.Sector, count, data); err != nil {
		return nil, classify("write failed", err)
	}

	return &WriteResponse{
		Sector: req.Sector,
		Count:  count,
		Bytes:  len(data) - padded,
		Padded: padded,
		Stats:  d.Stats(),
	}, nil
}

// Stats reads every mapped block with ECC verification and reports the counters
func Stats(ctx *app.Context, req *StatsRequest) (*StatsResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	session := req.Session
	session.VerifyReads = true
	c, d, err := openSession(ctx, session)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	g := d.Geometry()
	ppb := g.PagesPerBlock()
	buf := make([]byte, g.BlockSize())
	usable := g.UsableBlocks()

	var scanned uint64
	for l := uint32(0); l < usable; l++ {
		e, err := d.Lookup(types.Lba(l))
		if err != nil {
			return nil, classify("failed to read map", err)
		}
		if e.IsMapped() {
			if err := d.ReadSectors(l*ppb, ppb, buf); err != nil {
				return nil, classify("scan failed", err)
			}
			scanned += uint64(ppb)
		}
		if l%100 == 0 {
			ctx.Progress("Scanning mapped blocks...", int(uint64(l)*100/uint64(usable)))
		}
	}
	ctx.Progress("Complete", 100)

	ms := c.Statistics()
	return &StatsResponse{
		ImagePath:  session.ImagePath,
		Scanned:    scanned,
		Stats:      d.Stats(),
		Mismatches: d.EccMismatches(),
		Wear:       c.Wear(),
		Medium: MediumCounters{
			BytesRead:    ms.BytesRead(),
			BytesWritten: ms.BytesWritten(),
			Erases:       ms.Erases(),
			FailedWrites: ms.FailedWrites(),
		},
		OpsTable: ms.FormatTable(),
	}, nil
}

// openSession opens the image and attaches the translation layer to it
func openSession(ctx *app.Context, s Session) (*medium.CardImage, *ftl.Device, error) {
	opts, err := s.Options()
	if err != nil {
		return nil, nil, app.NewError(app.ErrCodeInvalidInput, "invalid write policy", err)
	}

	c, err := medium.OpenImage(s.ImagePath)
	if err != nil {
		return nil, nil, classify("failed to open card image", err)
	}

	d, err := ftl.Attach(c, opts)
	if err != nil {
		c.Close()
		return nil, nil, classify("failed to attach card", err)
	}
	ctx.Log(fmt.Sprintf("Attached %s (session %s, policy %s)", s.ImagePath, d.Session(), opts.Policy))
	return c, d, nil
}

// classify wraps err in a CommonError whose code reflects its cause
func classify(message string, err error) *app.CommonError {
	var (
		transportErr *ftl.TransportError
		mapErr       *ftl.MapError
	)
	code := app.ErrCodeCardAccess
	switch {
	case errors.Is(err, ftl.ErrWriteProtected), errors.Is(err, medium.ErrWriteProtected):
		code = app.ErrCodeWriteProtected
	case errors.Is(err, ftl.ErrMediumFull):
		code = app.ErrCodeMediumFull
	case errors.Is(err, ftl.ErrBadBlock):
		code = app.ErrCodeBadBlock
	case errors.Is(err, ftl.ErrMapInconsistency), errors.Is(err, ftl.ErrDeviceFaulted):
		code = app.ErrCodeDeviceFaulted
	case errors.Is(err, ftl.ErrOutOfRange), errors.Is(err, ftl.ErrShortBuffer):
		code = app.ErrCodeInvalidInput
	case errors.As(err, &transportErr), errors.As(err, &mapErr):
		code = app.ErrCodeTransport
	case errors.Is(err, os.ErrPermission):
		code = app.ErrCodePermission
	}
	return app.NewError(code, message, err)
}
