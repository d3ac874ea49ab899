// File: internal/interfaces/medium.go
package interfaces

import (
	"io"

	"github.com/deploymenttheory/go-smartmedia/internal/types"
)

// MediumReader provides the raw read primitives of a SmartMedia reader
type MediumReader interface {
	// Identify returns the device id byte used to select the card geometry
	Identify() (byte, error)

	// ReadPages reads length bytes of page data starting at a physical byte address
	ReadPages(address uint64, length uint32) ([]byte, error)

	// ReadOOB reads the spare area of the first page of count consecutive blocks
	ReadOOB(start types.Pba, count uint32) ([]byte, error)

	// ReadBlock reads the data and spare areas of every page of one block
	ReadBlock(pba types.Pba) (data []byte, spare []byte, err error)
}

// MediumWriter provides the raw write primitives of a SmartMedia reader
type MediumWriter interface {
	// WriteBlock erases the block at the request address and programs it
	WriteBlock(req WriteRequest) (WriteAck, error)

	// EraseBlock erases the block at a physical byte address
	EraseBlock(address uint64) error

	// ProgramSpare programs the spare area of one page without erasing.
	// Programming can only clear bits.
	ProgramSpare(pba types.Pba, page uint32, spare []byte) error

	// WriteProtected reports the state of the card's write-protect seal
	WriteProtected() (bool, error)
}

// Medium is the complete raw access contract consumed by the translation layer
type Medium interface {
	MediumReader
	MediumWriter
	io.Closer
}

// WriteRequest describes a whole-block program operation
type WriteRequest struct {
	// Physical byte address of the first page of the target block
	Address uint64

	// Page data for every page of the block
	Data []byte

	// Spare area for every page of the block
	Spare []byte

	// Set when the target block held no logical block before this write
	Fresh bool
}

// WriteAck is the post-write status reported by the medium
type WriteAck struct {
	// The block the medium actually committed the data to
	Committed types.Pba

	// Set when the medium rejected the program operation
	Failed bool
}

// SectorDevice is the contract exposed to the command emulation layer
type SectorDevice interface {
	// ReportCapacity returns the usable sector count and the sector size in bytes
	ReportCapacity() (sectors uint64, sectorSize uint32, err error)

	// ReadSectors reads count sectors starting at sector into dest
	ReadSectors(sector uint32, count uint32, dest []byte) error

	// WriteSectors writes count sectors starting at sector from src
	WriteSectors(sector uint32, count uint32, src []byte) error

	// IsWriteProtected reports whether writes will be rejected
	IsWriteProtected() bool
}
