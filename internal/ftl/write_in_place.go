package ftl

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/deploymenttheory/go-smartmedia/internal/types"
)

// writeInPlace merges src into the block the logical block already occupies
// and rewrites it at the same address. A logical block without one gets the
// next free block at or after the scan hint.
func (d *Device) writeInPlace(ext Extent, src []byte) error {
	g := d.geometry

	target, mapped := ext.Entry.Pba()
	if !mapped {
		zone := g.LogicalZone(ext.Lba)
		p, ok := d.table.findFreeFrom(zone, d.nextScanHint)
		if !ok {
			d.stats.MediumFull++
			return fmt.Errorf("%w: zone %d", ErrMediumFull, zone)
		}
		target = p
		d.nextScanHint = p + 1
		if uint32(d.nextScanHint) >= g.TotalBlocks() {
			d.nextScanHint = types.ReservedBlocks
		}
	}

	s := d.acquireStage()
	defer d.releaseStage(s)

	if err := d.loadStage(s, ext, src); err != nil {
		return err
	}

	glog.V(2).Infof("ftl[%s]: rewrite %s in place at %s, pages %d+%d", d.session, ext.Lba, target, ext.PageOffset, ext.PageCount)
	ack, err := d.program(s, target)
	if err != nil {
		return err
	}
	return d.commit(ext.Lba, target, ack)
}
