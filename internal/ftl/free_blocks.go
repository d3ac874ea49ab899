package ftl

import (
	"github.com/deploymenttheory/go-smartmedia/internal/types"
)

// findFreeBlock returns a free block of a zone for allocate-on-write. The
// first skip candidates are passed over so that the same low-numbered block
// is not reused on every write; if the zone has fewer candidates the last
// one found is used.
func (t *TranslationTable) findFreeBlock(zone uint32, skip int) (types.Pba, bool) {
	r := t.geometry.ZoneRange(zone)

	var last types.Pba
	found := 0
	for p := r.Start; p < r.End(); p++ {
		if p.IsReserved() || !t.pbaToLba[p].IsFree() {
			continue
		}
		if found == skip {
			return p, true
		}
		last = p
		found++
	}
	return last, found > 0
}

// findFreeFrom returns the first free block of a zone at or after hint,
// wrapping around to the start of the zone.
func (t *TranslationTable) findFreeFrom(zone uint32, hint types.Pba) (types.Pba, bool) {
	r := t.geometry.ZoneRange(zone)
	if !r.Contains(hint) {
		hint = r.Start
	}
	for i := uint32(0); i < r.Count; i++ {
		p := hint + types.Pba(i)
		if p >= r.End() {
			p -= types.Pba(r.Count)
		}
		if p.IsReserved() || !t.pbaToLba[p].IsFree() {
			continue
		}
		return p, true
	}
	return 0, false
}
