// Package ftl implements the SmartMedia flash translation layer: it presents
// a linear array of logical sectors on top of zoned NAND flash, rebuilding the
// logical/physical block map from the spare areas at attach time.
package ftl

import (
	"fmt"
	"strings"
	"sync"

	"github.com/golang/glog"
	"github.com/google/uuid"

	"github.com/deploymenttheory/go-smartmedia/internal/interfaces"
	"github.com/deploymenttheory/go-smartmedia/internal/types"
)

// WritePolicy selects the write algorithm.
type WritePolicy int

const (
	// PolicyAllocateOnWrite writes every block update to a fresh physical
	// block and retires the old one.
	PolicyAllocateOnWrite WritePolicy = iota
	// PolicyRewriteInPlace erases and rewrites the block a logical block
	// already occupies.
	PolicyRewriteInPlace
)

func (p WritePolicy) String() string {
	switch p {
	case PolicyAllocateOnWrite:
		return "allocate"
	case PolicyRewriteInPlace:
		return "in-place"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseWritePolicy accepts the names printed by WritePolicy.String.
func ParseWritePolicy(s string) (WritePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "allocate", "allocate-on-write":
		return PolicyAllocateOnWrite, nil
	case "in-place", "inplace", "rewrite-in-place":
		return PolicyRewriteInPlace, nil
	default:
		return 0, fmt.Errorf("unknown write policy %q", s)
	}
}

// Options tunes a Device.
type Options struct {
	Policy WritePolicy
	// Free block candidates allocate-on-write passes over before choosing one.
	WearSkip int
	// Check page ECC on every read.
	VerifyReads bool
	// Defer the map scan until the first request.
	LazyMap bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Policy:   PolicyAllocateOnWrite,
		WearSkip: 16,
	}
}

// maxMismatchLog bounds the list of recent ECC mismatches kept per device.
const maxMismatchLog = 64

// Device is the translation layer instance of one attached card. Every
// exported method serializes on the device lock.
type Device struct {
	mu       sync.Mutex
	medium   interfaces.Medium
	opts     Options
	geometry types.CardGeometry
	session  uuid.UUID
	attached bool

	table        *TranslationTable
	nextScanHint types.Pba
	staging      *sync.Pool

	faulted  bool
	faultErr error

	stats      Stats
	mismatches []EccMismatch
}

var _ interfaces.SectorDevice = (*Device)(nil)

// Attach identifies the card behind m and builds its translation table.
func Attach(m interfaces.Medium, opts Options) (*Device, error) {
	if opts.WearSkip < 0 {
		return nil, fmt.Errorf("wear skip must not be negative, got %d", opts.WearSkip)
	}
	d := &Device{medium: m, opts: opts}
	if err := d.attach(); err != nil {
		return nil, err
	}
	return d, nil
}

// attach identifies the medium and resets all per-card state.
func (d *Device) attach() error {
	id, err := d.medium.Identify()
	if err != nil {
		return &TransportError{Op: "identify", Err: err}
	}
	g, err := types.LookupGeometry(id)
	if err != nil {
		return err
	}

	d.geometry = g
	d.session = uuid.New()
	d.table = nil
	d.nextScanHint = types.ReservedBlocks
	d.staging = newStagingPool(g)
	d.faulted = false
	d.faultErr = nil
	d.attached = true

	glog.V(1).Infof("ftl[%s]: attached %s, policy %s", d.session, g, d.opts.Policy)
	if d.opts.LazyMap {
		return nil
	}
	return d.ensureMap()
}

// ensureMap builds the translation table if it is not present yet.
func (d *Device) ensureMap() error {
	if !d.attached {
		return ErrNotAttached
	}
	if d.table != nil {
		return nil
	}
	t, err := BuildMap(d.medium, d.geometry)
	if err != nil {
		glog.Errorf("ftl[%s]: %v", d.session, err)
		return err
	}
	d.table = t
	return nil
}

// Reattach discards the table and rebuilds it from the medium, as after the
// card is removed and reinserted. It clears the fault flag.
func (d *Device) Reattach() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.attach(); err != nil {
		d.attached = false
		return err
	}
	return nil
}

// Detach drops the translation table. The medium is left open.
func (d *Device) Detach() {
	d.mu.Lock()
	defer d.mu.Unlock()
	glog.V(1).Infof("ftl[%s]: detached", d.session)
	d.table = nil
	d.attached = false
}

// Geometry returns the card geometry.
func (d *Device) Geometry() types.CardGeometry {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.geometry
}

// Session returns the id of the current attachment.
func (d *Device) Session() uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

// Options returns the options the device was attached with.
func (d *Device) Options() Options {
	return d.opts
}

// Lookup returns the logical-side table slot of lba.
func (d *Device) Lookup(lba types.Lba) (types.Entry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureMap(); err != nil {
		return types.Undefined, err
	}
	return d.table.Lookup(lba), nil
}

// Owner returns the physical-side table slot of pba.
func (d *Device) Owner(pba types.Pba) (types.Entry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureMap(); err != nil {
		return types.Undefined, err
	}
	return d.table.Owner(pba), nil
}

// ZoneRelative returns the zone-relative address of the logical block
// stored in pba.
func (d *Device) ZoneRelative(pba types.Pba) (uint16, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureMap(); err != nil {
		return 0, false, err
	}
	rel, ok := d.table.ZoneRelative(pba)
	return rel, ok, nil
}

// Validate checks the table invariants.
func (d *Device) Validate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureMap(); err != nil {
		return err
	}
	return d.table.Validate()
}

// ReportCapacity returns the number of usable sectors and the sector size.
// Capacity is zone adjusted: only the logical blocks of each zone count.
func (d *Device) ReportCapacity() (uint64, uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureMap(); err != nil {
		return 0, 0, err
	}
	return d.capacity(), d.geometry.PageSize(), nil
}

func (d *Device) capacity() uint64 {
	return uint64(d.geometry.UsableBlocks()) * uint64(d.geometry.PagesPerBlock())
}

// IsWriteProtected reports whether writes will be rejected: the card's seal,
// a mask ROM part, or a faulted device.
func (d *Device) IsWriteProtected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	protected, err := d.writeProtected()
	if err != nil {
		glog.Warningf("ftl[%s]: write protect query failed: %v", d.session, err)
		return true
	}
	return protected || d.faulted
}

func (d *Device) writeProtected() (bool, error) {
	if d.geometry.ROM {
		return true, nil
	}
	wp, err := d.medium.WriteProtected()
	if err != nil {
		return false, &TransportError{Op: "write-protect", Err: err}
	}
	return wp, nil
}

// Faulted reports whether a map inconsistency has sealed the device, and why.
func (d *Device) Faulted() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.faulted, d.faultErr
}

// fault seals the device against writes until the next Reattach.
func (d *Device) fault(err error) {
	d.faulted = true
	d.faultErr = err
	glog.Errorf("ftl[%s]: device faulted: %v", d.session, err)
}

// checkRequest validates a sector range against the capacity and buffer.
func (d *Device) checkRequest(sector, count uint32, buf []byte) error {
	if uint64(sector)+uint64(count) > d.capacity() {
		return fmt.Errorf("%w: %d sectors at %d, capacity %d", ErrOutOfRange, count, sector, d.capacity())
	}
	if need := uint64(count) * uint64(d.geometry.PageSize()); uint64(len(buf)) < need {
		return fmt.Errorf("%w: %d bytes, need %d", ErrShortBuffer, len(buf), need)
	}
	return nil
}

// WriteSectors writes count sectors from src using the configured policy.
func (d *Device) WriteSectors(sector, count uint32, src []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.faulted {
		return fmt.Errorf("%w: %v", ErrDeviceFaulted, d.faultErr)
	}
	if err := d.ensureMap(); err != nil {
		return err
	}
	protected, err := d.writeProtected()
	if err != nil {
		return err
	}
	if protected {
		return ErrWriteProtected
	}
	if err := d.checkRequest(sector, count, src); err != nil {
		return err
	}

	glog.V(2).Infof("ftl[%s]: write %d sectors at %d", d.session, count, sector)
	ps := d.geometry.PageSize()
	return Walk(d.geometry, d.table, sector, count, func(ext Extent) error {
		data := src[ext.BufferOffset : ext.BufferOffset+ext.PageCount*ps]
		var err error
		if d.opts.Policy == PolicyRewriteInPlace {
			err = d.writeInPlace(ext, data)
		} else {
			err = d.writeAllocating(ext, data)
		}
		if err != nil {
			return err
		}
		d.stats.SectorsWritten += uint64(ext.PageCount)
		return nil
	})
}

// Stats returns a snapshot of the device counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.Faulted = d.faulted
	if d.table != nil {
		s.MappedBlocks = d.table.LbaCount()
	}
	return s
}

// ZoneReport returns the physical usage of every zone.
func (d *Device) ZoneReport() ([]ZoneUsage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.ensureMap(); err != nil {
		return nil, err
	}
	return d.table.ZoneUsage(), nil
}

// EccMismatches returns the most recent ECC mismatches, oldest first.
func (d *Device) EccMismatches() []EccMismatch {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]EccMismatch, len(d.mismatches))
	copy(out, d.mismatches)
	return out
}

func (d *Device) recordMismatch(m EccMismatch) {
	glog.Warningf("ftl[%s]: %v", d.session, m)
	d.stats.EccMismatches++
	if len(d.mismatches) == maxMismatchLog {
		d.mismatches = d.mismatches[1:]
	}
	d.mismatches = append(d.mismatches, m)
}
