package types

import (
	"errors"
	"fmt"
)

// SpareSize is the number of out-of-band bytes the reader exposes per page.
const SpareSize = 16

// MaxBlocksPerZone bounds the zone size. The stamped block address field
// carries ten bits of zone-relative address, so larger zones cannot be mapped.
const MaxBlocksPerZone = 1024

// ErrUnknownDevice is returned when a device identifier has no geometry entry.
var ErrUnknownDevice = errors.New("unknown SmartMedia device id")

// CardGeometry describes the physical layout of a card. It is derived from
// the device id once at attach time and never changes afterwards.
type CardGeometry struct {
	// Device identifier byte reported by the medium.
	DeviceID byte
	// Human readable capacity class.
	Name string
	// log2 of the total capacity in bytes.
	CapacityShift uint
	// log2 of the page size in bytes (8 or 9).
	PageShift uint
	// log2 of the number of pages per physical block.
	BlockShift uint
	// log2 of the number of physical blocks per zone.
	ZoneShift uint
	// Number of address cycles the card expects.
	AddressFieldWidth uint
	// Mask ROM parts cannot be written.
	ROM bool
}

// geometryTable lists every SmartMedia part the reader family recognizes.
var geometryTable = []CardGeometry{
	// NAND flash
	{DeviceID: 0x6e, Name: "1MB", CapacityShift: 20, PageShift: 8, BlockShift: 4, ZoneShift: 8, AddressFieldWidth: 2},
	{DeviceID: 0xe8, Name: "1MB", CapacityShift: 20, PageShift: 8, BlockShift: 4, ZoneShift: 8, AddressFieldWidth: 2},
	{DeviceID: 0xec, Name: "1MB", CapacityShift: 20, PageShift: 8, BlockShift: 4, ZoneShift: 8, AddressFieldWidth: 2},
	{DeviceID: 0x64, Name: "2MB", CapacityShift: 21, PageShift: 8, BlockShift: 4, ZoneShift: 9, AddressFieldWidth: 2},
	{DeviceID: 0xea, Name: "2MB", CapacityShift: 21, PageShift: 8, BlockShift: 4, ZoneShift: 9, AddressFieldWidth: 2},
	{DeviceID: 0x6b, Name: "4MB", CapacityShift: 22, PageShift: 9, BlockShift: 4, ZoneShift: 9, AddressFieldWidth: 2},
	{DeviceID: 0xe3, Name: "4MB", CapacityShift: 22, PageShift: 9, BlockShift: 4, ZoneShift: 9, AddressFieldWidth: 2},
	{DeviceID: 0xe5, Name: "4MB", CapacityShift: 22, PageShift: 9, BlockShift: 4, ZoneShift: 9, AddressFieldWidth: 2},
	{DeviceID: 0xe6, Name: "8MB", CapacityShift: 23, PageShift: 9, BlockShift: 4, ZoneShift: 10, AddressFieldWidth: 2},
	{DeviceID: 0x73, Name: "16MB", CapacityShift: 24, PageShift: 9, BlockShift: 5, ZoneShift: 10, AddressFieldWidth: 2},
	{DeviceID: 0x75, Name: "32MB", CapacityShift: 25, PageShift: 9, BlockShift: 5, ZoneShift: 10, AddressFieldWidth: 2},
	{DeviceID: 0x76, Name: "64MB", CapacityShift: 26, PageShift: 9, BlockShift: 5, ZoneShift: 10, AddressFieldWidth: 3},
	{DeviceID: 0x79, Name: "128MB", CapacityShift: 27, PageShift: 9, BlockShift: 5, ZoneShift: 10, AddressFieldWidth: 3},

	// MASK ROM
	{DeviceID: 0x5d, Name: "2MB ROM", CapacityShift: 21, PageShift: 9, BlockShift: 4, ZoneShift: 8, AddressFieldWidth: 2, ROM: true},
	{DeviceID: 0xd5, Name: "4MB ROM", CapacityShift: 22, PageShift: 9, BlockShift: 4, ZoneShift: 9, AddressFieldWidth: 2, ROM: true},
	{DeviceID: 0xd6, Name: "8MB ROM", CapacityShift: 23, PageShift: 9, BlockShift: 4, ZoneShift: 10, AddressFieldWidth: 2, ROM: true},
	{DeviceID: 0x57, Name: "16MB ROM", CapacityShift: 24, PageShift: 9, BlockShift: 4, ZoneShift: 11, AddressFieldWidth: 2, ROM: true},
	{DeviceID: 0x58, Name: "32MB ROM", CapacityShift: 25, PageShift: 9, BlockShift: 4, ZoneShift: 12, AddressFieldWidth: 2, ROM: true},
}

// LookupGeometry returns the geometry registered for a device id.
func LookupGeometry(id byte) (CardGeometry, error) {
	for _, g := range geometryTable {
		if g.DeviceID == id {
			return g, nil
		}
	}
	return CardGeometry{}, fmt.Errorf("%w: 0x%02x", ErrUnknownDevice, id)
}

// KnownGeometries returns a copy of the geometry table.
func KnownGeometries() []CardGeometry {
	out := make([]CardGeometry, len(geometryTable))
	copy(out, geometryTable)
	return out
}

// PageSize returns the number of data bytes per page.
func (g CardGeometry) PageSize() uint32 {
	return 1 << g.PageShift
}

// PagesPerBlock returns the number of pages in one erase block.
func (g CardGeometry) PagesPerBlock() uint32 {
	return 1 << g.BlockShift
}

// BlockMask masks a sector number down to its page offset within a block.
func (g CardGeometry) BlockMask() uint32 {
	return g.PagesPerBlock() - 1
}

// BlockSize returns the number of data bytes per erase block.
func (g CardGeometry) BlockSize() uint32 {
	return g.PageSize() << g.BlockShift
}

// BlockSpareSize returns the number of spare bytes per erase block.
func (g CardGeometry) BlockSpareSize() uint32 {
	return SpareSize << g.BlockShift
}

// TotalBlocks returns the number of physical blocks on the card.
func (g CardGeometry) TotalBlocks() uint32 {
	return 1 << (g.CapacityShift - g.PageShift - g.BlockShift)
}

// TotalPages returns the number of physical pages on the card.
func (g CardGeometry) TotalPages() uint32 {
	return g.TotalBlocks() << g.BlockShift
}

// BlocksPerZone returns the number of physical blocks grouped into one zone.
func (g CardGeometry) BlocksPerZone() uint32 {
	n := uint32(1) << g.ZoneShift
	if n > MaxBlocksPerZone {
		n = MaxBlocksPerZone
	}
	if total := g.TotalBlocks(); n > total {
		n = total
	}
	return n
}

// LogicalBlocksPerZone returns how many logical blocks a zone exposes:
// 125 of every 128 physical blocks, so 1000 of 1024.
func (g CardGeometry) LogicalBlocksPerZone() uint32 {
	return g.BlocksPerZone() / 128 * 125
}

// Zones returns the number of zones on the card.
func (g CardGeometry) Zones() uint32 {
	return g.TotalBlocks() / g.BlocksPerZone()
}

// UsableBlocks returns the size of the logical block address space.
func (g CardGeometry) UsableBlocks() uint32 {
	return g.Zones() * g.LogicalBlocksPerZone()
}

// ZoneOf returns the zone a physical block belongs to.
func (g CardGeometry) ZoneOf(p Pba) uint32 {
	return uint32(p) / g.BlocksPerZone()
}

// ZoneRange returns the physical blocks that make up a zone.
func (g CardGeometry) ZoneRange(zone uint32) Prange {
	n := g.BlocksPerZone()
	return Prange{Start: Pba(zone * n), Count: n}
}

// LogicalZone returns the zone a logical block lives in.
func (g CardGeometry) LogicalZone(l Lba) uint32 {
	return uint32(l) / g.LogicalBlocksPerZone()
}

// ZoneRelative strips the zone from a logical block address.
func (g CardGeometry) ZoneRelative(l Lba) uint16 {
	return uint16(uint32(l) % g.LogicalBlocksPerZone())
}

// HostLba combines a zone and a zone-relative address.
func (g CardGeometry) HostLba(zone uint32, rel uint16) Lba {
	return Lba(zone*g.LogicalBlocksPerZone() + uint32(rel))
}

// EccRegionSize is the number of bytes covered by one ECC triple: half a page.
func (g CardGeometry) EccRegionSize() uint32 {
	return g.PageSize() / 2
}

// BlockAddress returns the physical byte address of the first page of a block.
func (g CardGeometry) BlockAddress(p Pba) uint64 {
	return uint64(p) << (g.BlockShift + g.PageShift)
}

// PageAddress returns the physical byte address of a page inside a block.
func (g CardGeometry) PageAddress(p Pba, page uint32) uint64 {
	return ((uint64(p) << g.BlockShift) + uint64(page)) << g.PageShift
}

// AddressBlock returns the physical block that contains a byte address.
func (g CardGeometry) AddressBlock(address uint64) Pba {
	return Pba(address >> (g.BlockShift + g.PageShift))
}

// String describes the geometry for logs.
func (g CardGeometry) String() string {
	return fmt.Sprintf("id=0x%02x %s page=%d pages/block=%d blocks=%d zones=%d",
		g.DeviceID, g.Name, g.PageSize(), g.PagesPerBlock(), g.TotalBlocks(), g.Zones())
}
