package ftl

import (
	"fmt"

	"github.com/deploymenttheory/go-smartmedia/internal/types"
)

// TranslationTable is the bidirectional logical/physical block map of one
// card. The physical side stores host-visible logical addresses; the
// zone-relative form is recovered with CardGeometry.ZoneRelative.
type TranslationTable struct {
	geometry types.CardGeometry
	lbaToPba []types.Entry
	pbaToLba []types.Entry
	lbaCount int
}

// ZoneUsage summarizes the physical side of one zone.
type ZoneUsage struct {
	Zone     uint32 `json:"zone" yaml:"zone"`
	Mapped   int    `json:"mapped" yaml:"mapped"`
	Free     int    `json:"free" yaml:"free"`
	Spare    int    `json:"spare" yaml:"spare"`
	Unusable int    `json:"unusable" yaml:"unusable"`
	Bad      int    `json:"bad" yaml:"bad"`
}

// NewTranslationTable returns an empty table with the reserved blocks marked unusable.
func NewTranslationTable(g types.CardGeometry) *TranslationTable {
	t := &TranslationTable{
		geometry: g,
		lbaToPba: make([]types.Entry, g.UsableBlocks()),
		pbaToLba: make([]types.Entry, g.TotalBlocks()),
	}
	for p := types.Pba(0); p < types.ReservedBlocks && uint32(p) < g.TotalBlocks(); p++ {
		t.pbaToLba[p] = types.Unusable
	}
	return t
}

// Geometry returns the geometry the table was built for.
func (t *TranslationTable) Geometry() types.CardGeometry {
	return t.geometry
}

// Lookup returns the logical-side slot. Out of range addresses read as Undefined.
func (t *TranslationTable) Lookup(lba types.Lba) types.Entry {
	if uint32(lba) >= uint32(len(t.lbaToPba)) {
		return types.Undefined
	}
	return t.lbaToPba[lba]
}

// Owner returns the physical-side slot. Out of range blocks read as Unusable.
func (t *TranslationTable) Owner(pba types.Pba) types.Entry {
	if uint32(pba) >= uint32(len(t.pbaToLba)) {
		return types.Unusable
	}
	return t.pbaToLba[pba]
}

// ZoneRelative returns the zone-relative address of the logical block stored
// in pba, the value stamped in the block's control field.
func (t *TranslationTable) ZoneRelative(pba types.Pba) (uint16, bool) {
	lba, ok := t.Owner(pba).Lba()
	if !ok {
		return 0, false
	}
	return t.geometry.ZoneRelative(lba), true
}

// LbaCount returns the number of mapped logical blocks.
func (t *TranslationTable) LbaCount() int {
	return t.lbaCount
}

// Remap points lba at pba. The block lba previously occupied, if any, is
// marked Unused and returned.
func (t *TranslationTable) Remap(lba types.Lba, pba types.Pba) (types.Pba, bool) {
	old, hadOld := t.lbaToPba[lba].Pba()
	if hadOld && old == pba {
		return old, false
	}
	if hadOld {
		t.pbaToLba[old] = types.Unused
	} else {
		t.lbaCount++
	}
	t.lbaToPba[lba] = types.MappedPba(pba)
	t.pbaToLba[pba] = types.MappedLba(lba)
	return old, hadOld
}

// MarkBad excludes a physical block from allocation for the life of the table.
// A logical block stored there becomes Undefined.
func (t *TranslationTable) MarkBad(pba types.Pba) {
	t.unbind(pba)
	t.pbaToLba[pba] = types.BadBlock
}

func (t *TranslationTable) unbind(pba types.Pba) {
	lba, ok := t.pbaToLba[pba].Lba()
	if !ok {
		return
	}
	if cur, ok := t.lbaToPba[lba].Pba(); ok && cur == pba {
		t.lbaToPba[lba] = types.Undefined
		t.lbaCount--
	}
}

// Validate checks that the mapped slots form a partial bijection and that no
// zone exceeds its logical cap.
func (t *TranslationTable) Validate() error {
	g := t.geometry
	perZone := make([]uint32, g.Zones())

	for i, e := range t.lbaToPba {
		lba := types.Lba(i)
		pba, ok := e.Pba()
		if !ok {
			continue
		}
		if pba.IsReserved() || uint32(pba) >= g.TotalBlocks() {
			return fmt.Errorf("%s mapped to invalid %s", lba, pba)
		}
		back, ok := t.pbaToLba[pba].Lba()
		if !ok || back != lba {
			return fmt.Errorf("%s maps to %s but %s holds %s", lba, pba, pba, t.pbaToLba[pba])
		}
		if g.ZoneOf(pba) != g.LogicalZone(lba) {
			return fmt.Errorf("%s in zone %d mapped to %s in zone %d", lba, g.LogicalZone(lba), pba, g.ZoneOf(pba))
		}
		perZone[g.ZoneOf(pba)]++
	}

	for i, e := range t.pbaToLba {
		pba := types.Pba(i)
		lba, ok := e.Lba()
		if !ok {
			continue
		}
		fwd, ok := t.Lookup(lba).Pba()
		if !ok || fwd != pba {
			return fmt.Errorf("%s claims %s which maps to %s", pba, lba, t.Lookup(lba))
		}
		rel, _ := t.ZoneRelative(pba)
		if g.HostLba(g.ZoneOf(pba), rel) != lba {
			return fmt.Errorf("%s in zone %d holds %s from another zone", pba, g.ZoneOf(pba), lba)
		}
	}

	for zone, n := range perZone {
		if n > g.LogicalBlocksPerZone() {
			return fmt.Errorf("zone %d holds %d logical blocks, cap %d", zone, n, g.LogicalBlocksPerZone())
		}
	}
	return nil
}

// ZoneUsage returns one summary per zone.
func (t *TranslationTable) ZoneUsage() []ZoneUsage {
	g := t.geometry
	out := make([]ZoneUsage, g.Zones())
	for zone := range out {
		u := &out[zone]
		u.Zone = uint32(zone)
		r := g.ZoneRange(uint32(zone))
		for p := r.Start; p < r.End(); p++ {
			switch t.pbaToLba[p].Kind() {
			case types.EntryMapped:
				u.Mapped++
			case types.EntryUndefined, types.EntryUnused:
				u.Free++
			case types.EntrySpare:
				u.Spare++
			case types.EntryUnusable:
				u.Unusable++
			case types.EntryBadBlock:
				u.Bad++
			}
		}
	}
	return out
}
