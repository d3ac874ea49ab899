package types

// SmartMedia spare area layout, one 16-byte record per page.
// Reference: SmartMedia Physical Format Specification, redundant area.
const (
	SpareReservedOffset    = 0  // 4 reserved bytes, 0xFF
	SpareReservedSize      = 4  // Size of the reserved field
	SpareDataStatusOffset  = 4  // Data status flag, 0xFF when the page is good
	SpareBlockStatusOffset = 5  // Block status flag, 0xFF when the block is good
	SpareAddr1Offset       = 6  // Block address field 1 (big-endian)
	SpareEcc2Offset        = 8  // ECC of the second half of the page
	SpareAddr2Offset       = 11 // Block address field 2, a copy of field 1
	SpareEcc1Offset        = 13 // ECC of the first half of the page

	SpareGood = 0xFF // Status byte value of a healthy page or block
)

// Block address field: 0001 0LLL LLLL LLLP.
const (
	AddressMarkerMask  = 0xF800 // Marker nibble plus the always-zero bit
	AddressMarker      = 0x1000 // Required marker value
	AddressLbaMask     = 0x07FE // Zone-relative address bits
	AddressLbaShift    = 1      // Bit position of the zone-relative address
	AddressParityBit   = 0x0001 // Even parity over the 16-bit word
	AddressMaxRelative = AddressLbaMask >> AddressLbaShift
)
