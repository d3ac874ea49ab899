// Package types implements the data structures shared by the SmartMedia flash
// translation layer, the simulated medium, and the command layer.
package types

import "fmt"

// Pba is a physical block address: an index into the raw NAND array.
// Blocks 0 and 1 hold the card information structure and are never allocated.
type Pba uint32

// Lba is a host-visible logical block address. Zone boundaries are hidden:
// the zone-relative address plus LogicalBlocksPerZone times the zone number.
type Lba uint32

// ReservedBlocks is the number of leading physical blocks that are never
// mapped or allocated.
const ReservedBlocks Pba = 2

// IsReserved reports whether the block belongs to the vendor/boot area.
func (p Pba) IsReserved() bool {
	return p < ReservedBlocks
}

func (p Pba) String() string {
	return fmt.Sprintf("pba:%d", uint32(p))
}

func (l Lba) String() string {
	return fmt.Sprintf("lba:%d", uint32(l))
}

// Prange represents a contiguous range of physical blocks.
type Prange struct {
	// The first block in the range.
	Start Pba
	// The number of blocks in the range.
	Count uint32
}

// Contains reports whether p falls inside the range.
func (r Prange) Contains(p Pba) bool {
	return p >= r.Start && uint64(p) < uint64(r.Start)+uint64(r.Count)
}

// End returns the first block after the range.
func (r Prange) End() Pba {
	return r.Start + Pba(r.Count)
}
