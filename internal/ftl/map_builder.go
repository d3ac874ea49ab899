package ftl

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/deploymenttheory/go-smartmedia/internal/interfaces"
	"github.com/deploymenttheory/go-smartmedia/internal/parsers/oob"
	"github.com/deploymenttheory/go-smartmedia/internal/types"
)

// BuildMap scans the control field of every physical block and builds the
// translation table. It only reads from the medium and may be rerun at any time.
func BuildMap(m interfaces.MediumReader, g types.CardGeometry) (*TranslationTable, error) {
	t := NewTranslationTable(g)
	for zone := uint32(0); zone < g.Zones(); zone++ {
		if err := t.scanZone(m, zone); err != nil {
			return nil, err
		}
		t.enforceZoneCap(zone)
	}
	glog.V(1).Infof("ftl: map built for %s, %d logical blocks mapped", g.Name, t.lbaCount)
	return t, nil
}

// scanZone classifies the blocks of one zone from a single bulk spare read.
func (t *TranslationTable) scanZone(m interfaces.MediumReader, zone uint32) error {
	g := t.geometry
	r := g.ZoneRange(zone)

	spares, err := m.ReadOOB(r.Start, r.Count)
	if err != nil {
		return &MapError{Zone: zone, Err: &TransportError{Op: "read-oob", Address: g.BlockAddress(r.Start), Err: err}}
	}
	if len(spares) < int(r.Count)*types.SpareSize {
		return &MapError{Zone: zone, Err: fmt.Errorf("short spare read: %d bytes for %d blocks", len(spares), r.Count)}
	}

	var mapped, duplicates, outOfRange int
	for i := uint32(0); i < r.Count; i++ {
		pba := r.Start + types.Pba(i)
		if pba.IsReserved() {
			continue
		}
		reader, err := oob.NewRecordReader(spares[i*types.SpareSize : (i+1)*types.SpareSize])
		if err != nil {
			return &MapError{Zone: zone, Err: err}
		}

		switch reader.Classify() {
		case oob.StateErased:
			continue
		case oob.StateUnusable:
			t.pbaToLba[pba] = types.Unusable
		case oob.StateBadBlock:
			t.pbaToLba[pba] = types.BadBlock
		case oob.StateMapped:
			rel, _ := reader.ZoneRelativeLBA()
			if reader.DataStatus() != types.SpareGood {
				glog.V(2).Infof("ftl: %s page 0 data status 0x%02x", pba, reader.DataStatus())
			}
			if uint32(rel) >= g.LogicalBlocksPerZone() {
				outOfRange++
				continue
			}
			lba := g.HostLba(zone, rel)
			if t.lbaToPba[lba].IsMapped() {
				t.pbaToLba[pba] = types.Spare
				duplicates++
				continue
			}
			t.lbaToPba[lba] = types.MappedPba(pba)
			t.pbaToLba[pba] = types.MappedLba(lba)
			t.lbaCount++
			mapped++
		}
	}

	glog.V(1).Infof("ftl: zone %d: %d mapped, %d duplicate, %d out of range", zone, mapped, duplicates, outOfRange)
	return nil
}

// enforceZoneCap downgrades mapped blocks beyond the first LogicalBlocksPerZone
// in physical scan order to Spare.
func (t *TranslationTable) enforceZoneCap(zone uint32) {
	g := t.geometry
	r := g.ZoneRange(zone)
	limit := g.LogicalBlocksPerZone()

	var active uint32
	for p := r.Start; p < r.End(); p++ {
		lba, ok := t.pbaToLba[p].Lba()
		if !ok {
			continue
		}
		active++
		if active <= limit {
			continue
		}
		t.lbaToPba[lba] = types.Undefined
		t.pbaToLba[p] = types.Spare
		t.lbaCount--
		glog.Warningf("ftl: zone %d over capacity, %s demoted to spare", zone, p)
	}
}
