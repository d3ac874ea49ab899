package medium

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/tchajed/goose/machine/disk"
	"github.com/tchajed/marshal"

	"github.com/deploymenttheory/go-smartmedia/internal/interfaces"
	"github.com/deploymenttheory/go-smartmedia/internal/parsers/oob"
	"github.com/deploymenttheory/go-smartmedia/internal/types"
)

// Image header, stored in disk block 0.
const (
	headerMagic   uint64 = 0x31445241434d53 // "SMCARD1"
	headerVersion uint32 = 1

	flagWriteProtect uint32 = 1 << 0
)

var (
	// ErrWriteProtected is returned when a program or erase hits a sealed card.
	ErrWriteProtected = errors.New("card is write protected")
	// ErrBadAddress is returned for unaligned or out of range raw accesses.
	ErrBadAddress = errors.New("raw address out of range")
	// ErrNotSmartMediaImage is returned when an image header does not match.
	ErrNotSmartMediaImage = errors.New("not a SmartMedia card image")
)

// CardImage simulates a SmartMedia card behind a reader: raw NAND pages with
// a 16-byte spare area each, erased to 0xFF, stored on a goose disk. Disk block
// 0 holds the image header; the raw page stream starts at block 1.
type CardImage struct {
	mu           sync.Mutex
	disk         disk.Disk
	path         string
	geometry     types.CardGeometry
	writeProtect bool
	faults       *Faults
	stats        *Statistics
	eraseCounts  []uint32
}

// FormatOptions controls how a blank card is initialized.
type FormatOptions struct {
	DeviceID     byte
	WriteProtect bool
	BadBlocks    []types.Pba
}

// assert that CardImage implements interfaces.Medium
var _ interfaces.Medium = &CardImage{}

// pageStride is the number of raw bytes one page occupies: data plus spare.
func pageStride(g types.CardGeometry) uint64 {
	return uint64(g.PageSize()) + types.SpareSize
}

// diskBlocks returns the number of goose disk blocks needed for a card.
func diskBlocks(g types.CardGeometry) uint64 {
	raw := uint64(g.TotalPages()) * pageStride(g)
	return 1 + (raw+disk.BlockSize-1)/disk.BlockSize
}

// NewMemCard formats a card held entirely in memory.
func NewMemCard(opts FormatOptions) (*CardImage, error) {
	g, err := types.LookupGeometry(opts.DeviceID)
	if err != nil {
		return nil, err
	}
	d := disk.NewMemDisk(diskBlocks(g))
	c := newCardImage(d, g, "")
	if err := c.format(opts); err != nil {
		return nil, err
	}
	return c, nil
}

// CreateImage formats a new card image file, replacing any existing file.
func CreateImage(path string, opts FormatOptions) (*CardImage, error) {
	g, err := types.LookupGeometry(opts.DeviceID)
	if err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to replace card image: %w", err)
	}

	var d disk.Disk
	file, err := disk.NewFileDisk(path, diskBlocks(g))
	if err != nil {
		return nil, fmt.Errorf("failed to create card image: %w", err)
	}
	d = file

	c := newCardImage(d, g, path)
	if err := c.format(opts); err != nil {
		d.Close()
		return nil, err
	}
	return c, nil
}

// OpenImage opens an existing card image file.
func OpenImage(path string) (*CardImage, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat card image: %w", err)
	}
	if stat.Size() < int64(disk.BlockSize) || stat.Size()%int64(disk.BlockSize) != 0 {
		return nil, fmt.Errorf("%w: size %d", ErrNotSmartMediaImage, stat.Size())
	}
	numBlocks := uint64(stat.Size()) / disk.BlockSize

	var d disk.Disk
	file, err := disk.NewFileDisk(path, numBlocks)
	if err != nil {
		return nil, fmt.Errorf("failed to open card image: %w", err)
	}
	d = file

	id, wp, err := decodeHeader(d.Read(0))
	if err != nil {
		d.Close()
		return nil, err
	}
	g, err := types.LookupGeometry(id)
	if err != nil {
		d.Close()
		return nil, err
	}
	if diskBlocks(g) != numBlocks {
		d.Close()
		return nil, fmt.Errorf("%w: %d blocks, geometry %s needs %d", ErrNotSmartMediaImage, numBlocks, g.Name, diskBlocks(g))
	}

	c := newCardImage(d, g, path)
	c.writeProtect = wp
	glog.V(1).Infof("medium: opened %s (%s)", path, g)
	return c, nil
}

func newCardImage(d disk.Disk, g types.CardGeometry, path string) *CardImage {
	return &CardImage{
		disk:        d,
		path:        path,
		geometry:    g,
		faults:      newFaults(),
		stats:       &Statistics{},
		eraseCounts: make([]uint32, g.TotalBlocks()),
	}
}

func encodeHeader(id byte, writeProtect bool) disk.Block {
	var flags uint32
	if writeProtect {
		flags |= flagWriteProtect
	}
	enc := marshal.NewEnc(disk.BlockSize)
	enc.PutInt(headerMagic)
	enc.PutInt32(headerVersion)
	enc.PutInt32(uint32(id))
	enc.PutInt32(flags)
	return enc.Finish()
}

func decodeHeader(b disk.Block) (byte, bool, error) {
	dec := marshal.NewDec(b)
	if dec.GetInt() != headerMagic {
		return 0, false, ErrNotSmartMediaImage
	}
	if v := dec.GetInt32(); v != headerVersion {
		return 0, false, fmt.Errorf("%w: unsupported version %d", ErrNotSmartMediaImage, v)
	}
	id := dec.GetInt32()
	flags := dec.GetInt32()
	return byte(id), flags&flagWriteProtect != 0, nil
}

// format erases every block and writes the header and bad block markers.
func (c *CardImage) format(opts FormatOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	erased := make(disk.Block, disk.BlockSize)
	for i := range erased {
		erased[i] = 0xFF
	}
	for a := uint64(1); a < c.disk.Size(); a++ {
		c.disk.Write(a, erased)
	}

	marker := oob.BadBlockMarker()
	for _, pba := range opts.BadBlocks {
		if uint32(pba) >= c.geometry.TotalBlocks() {
			return fmt.Errorf("%w: bad block %s", ErrBadAddress, pba)
		}
		c.writeRaw(c.spareOffset(pba, 0), marker)
	}

	c.writeProtect = opts.WriteProtect
	c.disk.Write(0, encodeHeader(c.geometry.DeviceID, c.writeProtect))
	c.disk.Barrier()

	glog.V(1).Infof("medium: formatted %s with %d bad blocks", c.geometry, len(opts.BadBlocks))
	return nil
}

// Geometry returns the card geometry.
func (c *CardImage) Geometry() types.CardGeometry {
	return c.geometry
}

// Path returns the backing file, or "" for a memory card.
func (c *CardImage) Path() string {
	return c.path
}

// Faults returns the fault injection controls of this card.
func (c *CardImage) Faults() *Faults {
	return c.faults
}

// Statistics returns the operation counters of this card.
func (c *CardImage) Statistics() *Statistics {
	return c.stats
}

// SetWriteProtect changes the write-protect seal and persists it.
func (c *CardImage) SetWriteProtect(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeProtect = on
	c.disk.Write(0, encodeHeader(c.geometry.DeviceID, on))
	c.disk.Barrier()
}

// Identify returns the device id byte.
func (c *CardImage) Identify() (byte, error) {
	defer c.stats.record(opIdentify, time.Now())
	return c.geometry.DeviceID, nil
}

// WriteProtected reports the seal state. Mask ROM parts are always sealed.
func (c *CardImage) WriteProtected() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeProtect || c.geometry.ROM, nil
}

// ReadPages reads page data starting at a page-aligned physical byte address.
func (c *CardImage) ReadPages(address uint64, length uint32) ([]byte, error) {
	defer c.stats.record(opReadPages, time.Now())
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.faults.readError(address); err != nil {
		return nil, err
	}
	pageSize := uint64(c.geometry.PageSize())
	if address%pageSize != 0 || uint64(length)%pageSize != 0 {
		return nil, fmt.Errorf("%w: unaligned read at 0x%x length %d", ErrBadAddress, address, length)
	}
	first := address / pageSize
	pages := uint64(length) / pageSize
	if first+pages > uint64(c.geometry.TotalPages()) {
		return nil, fmt.Errorf("%w: read at 0x%x length %d", ErrBadAddress, address, length)
	}

	out := make([]byte, 0, length)
	for p := first; p < first+pages; p++ {
		out = append(out, c.readRaw(p*pageStride(c.geometry), pageSize)...)
	}
	c.stats.addRead(uint64(length))
	return out, nil
}

// ReadOOB reads the spare area of page 0 of count blocks starting at start.
func (c *CardImage) ReadOOB(start types.Pba, count uint32) ([]byte, error) {
	defer c.stats.record(opReadOOB, time.Now())
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.faults.oobError(start); err != nil {
		return nil, err
	}
	if uint64(start)+uint64(count) > uint64(c.geometry.TotalBlocks()) {
		return nil, fmt.Errorf("%w: oob read of %d blocks at %s", ErrBadAddress, count, start)
	}

	out := make([]byte, 0, count*types.SpareSize)
	for i := uint32(0); i < count; i++ {
		out = append(out, c.readRaw(c.spareOffset(start+types.Pba(i), 0), types.SpareSize)...)
	}
	c.stats.addRead(uint64(len(out)))
	return out, nil
}

// ReadBlock reads every page of a block with its spare area.
func (c *CardImage) ReadBlock(pba types.Pba) ([]byte, []byte, error) {
	defer c.stats.record(opReadBlock, time.Now())
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.faults.readError(c.geometry.BlockAddress(pba)); err != nil {
		return nil, nil, err
	}
	if uint32(pba) >= c.geometry.TotalBlocks() {
		return nil, nil, fmt.Errorf("%w: %s", ErrBadAddress, pba)
	}

	g := c.geometry
	pageSize := uint64(g.PageSize())
	raw := c.readRaw(c.pageOffset(pba, 0), uint64(g.PagesPerBlock())*pageStride(g))

	data := make([]byte, 0, g.BlockSize())
	spare := make([]byte, 0, g.BlockSpareSize())
	for p := uint64(0); p < uint64(g.PagesPerBlock()); p++ {
		page := raw[p*pageStride(g):]
		data = append(data, page[:pageSize]...)
		spare = append(spare, page[pageSize:pageSize+types.SpareSize]...)
	}
	c.stats.addRead(uint64(len(raw)))
	return data, spare, nil
}

// WriteBlock erases the addressed block and programs data and spare into it.
// Injected faults may redirect the program to a different block or report
// it as failed; the acknowledgement always names the block actually used.
func (c *CardImage) WriteBlock(req interfaces.WriteRequest) (interfaces.WriteAck, error) {
	defer c.stats.record(opWriteBlock, time.Now())
	c.mu.Lock()
	defer c.mu.Unlock()

	g := c.geometry
	if c.writeProtect || g.ROM {
		return interfaces.WriteAck{}, ErrWriteProtected
	}
	if req.Address%uint64(g.BlockSize()) != 0 {
		return interfaces.WriteAck{}, fmt.Errorf("%w: unaligned block write at 0x%x", ErrBadAddress, req.Address)
	}
	pba := g.AddressBlock(req.Address)
	if uint32(pba) >= g.TotalBlocks() {
		return interfaces.WriteAck{}, fmt.Errorf("%w: block write at %s", ErrBadAddress, pba)
	}
	if uint32(len(req.Data)) != g.BlockSize() || uint32(len(req.Spare)) != g.BlockSpareSize() {
		return interfaces.WriteAck{}, fmt.Errorf("%w: block write of %d+%d bytes", ErrBadAddress, len(req.Data), len(req.Spare))
	}
	if err := c.faults.writeError(pba); err != nil {
		return interfaces.WriteAck{}, err
	}

	committed := c.faults.substitution(pba)
	if committed != pba {
		glog.V(1).Infof("medium: write to %s committed to %s", pba, committed)
	}

	c.erase(committed)
	if c.faults.programFails(committed) {
		c.stats.failedWrites.Add(1)
		return interfaces.WriteAck{Committed: committed, Failed: true}, nil
	}
	c.program(committed, req.Data, req.Spare)
	if req.Fresh {
		c.stats.freshWrites.Add(1)
	}
	c.stats.addWrite(uint64(len(req.Data) + len(req.Spare)))
	return interfaces.WriteAck{Committed: committed}, nil
}

// EraseBlock erases the block containing a physical byte address.
func (c *CardImage) EraseBlock(address uint64) error {
	defer c.stats.record(opEraseBlock, time.Now())
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeProtect || c.geometry.ROM {
		return ErrWriteProtected
	}
	pba := c.geometry.AddressBlock(address)
	if uint32(pba) >= c.geometry.TotalBlocks() {
		return fmt.Errorf("%w: erase at %s", ErrBadAddress, pba)
	}
	if err := c.faults.eraseError(pba); err != nil {
		return err
	}
	c.erase(pba)
	return nil
}

// ProgramSpare programs the spare area of one page in place. The stored
// value is the AND of the old and new bytes, as on real NAND.
func (c *CardImage) ProgramSpare(pba types.Pba, page uint32, spare []byte) error {
	defer c.stats.record(opProgramSpare, time.Now())
	c.mu.Lock()
	defer c.mu.Unlock()

	g := c.geometry
	if c.writeProtect || g.ROM {
		return ErrWriteProtected
	}
	if uint32(pba) >= g.TotalBlocks() || page >= g.PagesPerBlock() {
		return fmt.Errorf("%w: spare program at %s page %d", ErrBadAddress, pba, page)
	}
	if len(spare) != types.SpareSize {
		return fmt.Errorf("%w: spare program of %d bytes", ErrBadAddress, len(spare))
	}
	if err := c.faults.writeError(pba); err != nil {
		return err
	}

	offset := c.spareOffset(pba, page)
	raw := c.readRaw(offset, types.SpareSize)
	for i, b := range spare {
		raw[i] &= b
	}
	c.writeRaw(offset, raw)
	c.stats.addWrite(uint64(len(spare)))
	return nil
}

// EraseCount returns how often a block has been erased since the image was opened.
func (c *CardImage) EraseCount(pba types.Pba) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eraseCounts[pba]
}

// Close flushes and closes the backing disk.
func (c *CardImage) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disk.Barrier()
	c.disk.Close()
	return nil
}

func (c *CardImage) pageOffset(pba types.Pba, page uint32) uint64 {
	index := uint64(pba)<<c.geometry.BlockShift + uint64(page)
	return index * pageStride(c.geometry)
}

func (c *CardImage) spareOffset(pba types.Pba, page uint32) uint64 {
	return c.pageOffset(pba, page) + uint64(c.geometry.PageSize())
}

func (c *CardImage) erase(pba types.Pba) {
	g := c.geometry
	erased := make([]byte, uint64(g.PagesPerBlock())*pageStride(g))
	for i := range erased {
		erased[i] = 0xFF
	}
	c.writeRaw(c.pageOffset(pba, 0), erased)
	c.eraseCounts[pba]++
	c.stats.erases.Add(1)
}

// program stores data into an erased block. NAND programming can only clear
// bits, so the stored value is the AND of old and new contents.
func (c *CardImage) program(pba types.Pba, data, spare []byte) {
	g := c.geometry
	pageSize := uint64(g.PageSize())
	stride := pageStride(g)
	offset := c.pageOffset(pba, 0)

	raw := c.readRaw(offset, uint64(g.PagesPerBlock())*stride)
	for p := uint64(0); p < uint64(g.PagesPerBlock()); p++ {
		page := raw[p*stride : (p+1)*stride]
		for i, b := range data[p*pageSize : (p+1)*pageSize] {
			page[i] &= b
		}
		for i, b := range spare[p*types.SpareSize : (p+1)*types.SpareSize] {
			page[pageSize+uint64(i)] &= b
		}
	}
	c.writeRaw(offset, raw)
}

// readRaw reads n bytes of the raw page stream.
func (c *CardImage) readRaw(off, n uint64) []byte {
	out := make([]byte, 0, n)
	for n > 0 {
		a := 1 + off/disk.BlockSize
		within := off % disk.BlockSize
		chunk := disk.BlockSize - within
		if chunk > n {
			chunk = n
		}
		blk := c.disk.Read(a)
		out = append(out, blk[within:within+chunk]...)
		off += chunk
		n -= chunk
	}
	return out
}

// writeRaw writes data into the raw page stream, merging partial disk blocks.
func (c *CardImage) writeRaw(off uint64, data []byte) {
	for len(data) > 0 {
		a := 1 + off/disk.BlockSize
		within := off % disk.BlockSize
		chunk := disk.BlockSize - within
		if chunk > uint64(len(data)) {
			chunk = uint64(len(data))
		}
		var blk disk.Block
		if within == 0 && chunk == disk.BlockSize {
			blk = make(disk.Block, disk.BlockSize)
		} else {
			blk = c.disk.Read(a)
		}
		copy(blk[within:within+chunk], data[:chunk])
		c.disk.Write(a, blk)
		off += chunk
		data = data[chunk:]
	}
}
