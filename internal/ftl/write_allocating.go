package ftl

import (
	"fmt"

	"github.com/golang/glog"
)

// writeAllocating writes the merged block image to a free block of the
// logical block's zone and retires the block it occupied before.
func (d *Device) writeAllocating(ext Extent, src []byte) error {
	zone := d.geometry.LogicalZone(ext.Lba)
	target, ok := d.table.findFreeBlock(zone, d.opts.WearSkip)
	if !ok {
		d.stats.MediumFull++
		return fmt.Errorf("%w: zone %d", ErrMediumFull, zone)
	}

	s := d.acquireStage()
	defer d.releaseStage(s)

	if err := d.loadStage(s, ext, src); err != nil {
		return err
	}

	glog.V(2).Infof("ftl[%s]: write %s to %s (was %s), pages %d+%d", d.session, ext.Lba, target, ext.Entry, ext.PageOffset, ext.PageCount)
	ack, err := d.program(s, target)
	if err != nil {
		return err
	}
	return d.commit(ext.Lba, target, ack)
}
