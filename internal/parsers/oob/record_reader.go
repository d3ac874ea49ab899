// Package oob parses and stamps the per-page spare (out-of-band) records that
// carry a block's logical identity and its ECC.
package oob

import (
	"encoding/binary"
	"fmt"

	"github.com/tchajed/marshal"

	"github.com/deploymenttheory/go-smartmedia/internal/ecc"
	"github.com/deploymenttheory/go-smartmedia/internal/types"
)

// State is the classification of a block derived from its control field.
type State int

const (
	// StateErased means the block was never written and is skipped by the map builder.
	StateErased State = iota
	// StateUnusable means the block carries no valid logical identity.
	StateUnusable
	// StateBadBlock means the block status byte flags the block as defective.
	StateBadBlock
	// StateMapped means the block carries a valid zone-relative address.
	StateMapped
)

func (s State) String() string {
	switch s {
	case StateErased:
		return "erased"
	case StateUnusable:
		return "unusable"
	case StateBadBlock:
		return "bad"
	case StateMapped:
		return "mapped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Record is the decoded form of one spare area.
type Record struct {
	Reserved     [types.SpareReservedSize]byte
	DataStatus   byte
	BlockStatus  byte
	AddressField uint16
	EccSecond    ecc.Code
	AddressCopy  uint16
	EccFirst     ecc.Code
}

// RecordReader provides parsing capabilities for a spare area.
type RecordReader struct {
	record *Record
	data   []byte
}

// NewRecordReader decodes the 16-byte spare area of one page.
func NewRecordReader(data []byte) (*RecordReader, error) {
	if len(data) < types.SpareSize {
		return nil, fmt.Errorf("data too small for spare record: %d bytes, need %d", len(data), types.SpareSize)
	}

	record := parseRecord(data[:types.SpareSize])

	return &RecordReader{
		record: record,
		data:   data[:types.SpareSize],
	}, nil
}

// parseRecord walks the spare layout field by field.
func parseRecord(data []byte) *Record {
	r := &Record{}
	dec := marshal.NewDec(data)

	copy(r.Reserved[:], dec.GetBytes(types.SpareReservedSize))
	status := dec.GetBytes(2)
	r.DataStatus = status[0]
	r.BlockStatus = status[1]
	r.AddressField = binary.BigEndian.Uint16(dec.GetBytes(2))
	r.EccSecond = ecc.Load(dec.GetBytes(ecc.Size))
	r.AddressCopy = binary.BigEndian.Uint16(dec.GetBytes(2))
	r.EccFirst = ecc.Load(dec.GetBytes(ecc.Size))

	return r
}

// Classify applies the control field rules: all zero is unusable, all 0xFF
// is erased, a cleared block status byte is bad, and an address field with a
// wrong marker or odd parity is unusable. A corrupt field is never mapped.
func (rr *RecordReader) Classify() State {
	if allBytes(rr.data, 0x00) {
		return StateUnusable
	}
	if rr.IsErased() {
		return StateErased
	}
	if rr.BlockStatus() != types.SpareGood {
		return StateBadBlock
	}
	if _, ok := rr.ZoneRelativeLBA(); !ok {
		return StateUnusable
	}
	return StateMapped
}

// ZoneRelativeLBA returns the stamped address, or false if the field is invalid.
func (rr *RecordReader) ZoneRelativeLBA() (uint16, bool) {
	return DecodeAddressField(rr.record.AddressField)
}

// EccFirstHalf returns the code stored for the first half of the page.
func (rr *RecordReader) EccFirstHalf() ecc.Code {
	return rr.record.EccFirst
}

// EccSecondHalf returns the code stored for the second half of the page.
func (rr *RecordReader) EccSecondHalf() ecc.Code {
	return rr.record.EccSecond
}

// DataStatus returns the page status byte.
func (rr *RecordReader) DataStatus() byte {
	return rr.record.DataStatus
}

// BlockStatus returns the block status byte.
func (rr *RecordReader) BlockStatus() byte {
	return rr.record.BlockStatus
}

// IsErased reports whether the record has never been programmed.
func (rr *RecordReader) IsErased() bool {
	return allBytes(rr.data, 0xFF)
}

// Classify classifies a raw spare area. Short input is unusable.
func Classify(spare []byte) State {
	rr, err := NewRecordReader(spare)
	if err != nil {
		return StateUnusable
	}
	return rr.Classify()
}

// DecodeAddressField validates the marker and parity of an address field and
// extracts the zone-relative address.
func DecodeAddressField(field uint16) (uint16, bool) {
	if field&types.AddressMarkerMask != types.AddressMarker {
		return 0, false
	}
	if ecc.Parity(byte(field>>8)^byte(field)) != 0 {
		return 0, false
	}
	return (field & types.AddressLbaMask) >> types.AddressLbaShift, true
}

// EncodeAddressField builds the address field for a zone-relative address,
// setting the parity bit so the word has even parity.
func EncodeAddressField(zoneRelative uint16) uint16 {
	field := types.AddressMarker | (zoneRelative<<types.AddressLbaShift)&types.AddressLbaMask
	if ecc.Parity(byte(field>>8)^byte(field)) != 0 {
		field ^= types.AddressParityBit
	}
	return field
}

// Stamp builds the spare area for one page of a block owned by the given
// zone-relative address, with codes for both halves of the page data.
func Stamp(zoneRelative uint16, first, second ecc.Code) []byte {
	field := make([]byte, 2)
	binary.BigEndian.PutUint16(field, EncodeAddressField(zoneRelative))

	enc := marshal.NewEnc(types.SpareSize)
	enc.PutBytes([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	enc.PutBytes([]byte{types.SpareGood, types.SpareGood})
	enc.PutBytes(field)
	enc.PutBytes(second[:])
	enc.PutBytes(field)
	enc.PutBytes(first[:])
	return enc.Finish()
}

// StampPage computes both half-page codes for page data and returns the
// stamped spare area.
func StampPage(zoneRelative uint16, page []byte) []byte {
	half := len(page) / 2
	return Stamp(zoneRelative, ecc.Compute(page[:half]), ecc.Compute(page[half:]))
}

// VerifyPage checks the page data against the codes in its spare area.
// Erased spare areas carry no codes and always verify.
func VerifyPage(page, spare []byte) (firstOK, secondOK bool) {
	rr, err := NewRecordReader(spare)
	if err != nil {
		return false, false
	}
	if rr.IsErased() {
		return true, true
	}
	half := len(page) / 2
	firstOK = ecc.Verify(page[:half], rr.EccFirstHalf())
	secondOK = ecc.Verify(page[half:], rr.EccSecondHalf())
	return firstOK, secondOK
}

// BadBlockMarker returns a spare area that flags its block as defective.
func BadBlockMarker() []byte {
	spare := make([]byte, types.SpareSize)
	for i := range spare {
		spare[i] = 0xFF
	}
	spare[types.SpareBlockStatusOffset] = 0x00
	return spare
}

func allBytes(data []byte, v byte) bool {
	for _, b := range data {
		if b != v {
			return false
		}
	}
	return true
}
