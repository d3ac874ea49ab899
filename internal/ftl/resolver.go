package ftl

import (
	"github.com/deploymenttheory/go-smartmedia/internal/types"
)

// Extent is the part of a sector request that falls inside one logical block.
type Extent struct {
	Lba          types.Lba
	Entry        types.Entry
	PageOffset   uint32
	PageCount    uint32
	BufferOffset uint32
}

// Walk splits count sectors starting at sector into per-block extents and
// calls fn for each in order. Walk stops at the first error fn returns.
func Walk(g types.CardGeometry, t *TranslationTable, sector, count uint32, fn func(Extent) error) error {
	var consumed uint32
	for count > 0 {
		lba := types.Lba(sector >> g.BlockShift)
		offset := sector & g.BlockMask()
		n := g.PagesPerBlock() - offset
		if n > count {
			n = count
		}

		ext := Extent{
			Lba:          lba,
			Entry:        t.Lookup(lba),
			PageOffset:   offset,
			PageCount:    n,
			BufferOffset: consumed * g.PageSize(),
		}
		if err := fn(ext); err != nil {
			return err
		}

		sector += n
		count -= n
		consumed += n
	}
	return nil
}

// Resolve returns every extent of a request. Reads resolve the whole request
// up front; writes use Walk because each block write can change the table.
func Resolve(g types.CardGeometry, t *TranslationTable, sector, count uint32) []Extent {
	var out []Extent
	_ = Walk(g, t, sector, count, func(e Extent) error {
		out = append(out, e)
		return nil
	})
	return out
}
