package ftl

import (
	"sync"

	"github.com/deploymenttheory/go-smartmedia/internal/types"
)

// Stats counts translation layer activity since attach.
type Stats struct {
	SectorsRead    uint64 `json:"sectors_read" yaml:"sectors_read"`
	SectorsWritten uint64 `json:"sectors_written" yaml:"sectors_written"`
	ZeroFilled     uint64 `json:"zero_filled" yaml:"zero_filled"`
	BlockWrites    uint64 `json:"block_writes" yaml:"block_writes"`
	Remaps         uint64 `json:"remaps" yaml:"remaps"`
	Substitutions  uint64 `json:"substitutions" yaml:"substitutions"`
	EccMismatches  uint64 `json:"ecc_mismatches" yaml:"ecc_mismatches"`
	BadBlocks      uint64 `json:"bad_blocks" yaml:"bad_blocks"`
	MediumFull     uint64 `json:"medium_full" yaml:"medium_full"`
	MappedBlocks   int    `json:"mapped_blocks" yaml:"mapped_blocks"`
	Faulted        bool   `json:"faulted" yaml:"faulted"`
}

// stage is a whole-block staging buffer.
type stage struct {
	data  []byte
	spare []byte
}

func newStagingPool(g types.CardGeometry) *sync.Pool {
	return &sync.Pool{
		New: func() any {
			return &stage{
				data:  make([]byte, g.BlockSize()),
				spare: make([]byte, g.BlockSpareSize()),
			}
		},
	}
}

// acquireStage takes a staging buffer for the duration of one block write.
// Callers release it with releaseStage on every exit path.
func (d *Device) acquireStage() *stage {
	return d.staging.Get().(*stage)
}

func (d *Device) releaseStage(s *stage) {
	d.staging.Put(s)
}
