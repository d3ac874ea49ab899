package ftl

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/deploymenttheory/go-smartmedia/internal/interfaces"
	"github.com/deploymenttheory/go-smartmedia/internal/parsers/oob"
	"github.com/deploymenttheory/go-smartmedia/internal/types"
)

// loadStage fills s with the new image of the block holding ext: the current
// block contents (zeros if the logical block has none) merged with src, and a
// freshly stamped spare area for every page.
//
// Pages of the old block that are not being overwritten are checked against
// their stored codes first. A mismatch is recorded and the page is restamped
// with a code computed from the data as read.
func (d *Device) loadStage(s *stage, ext Extent, src []byte) error {
	g := d.geometry
	ps := g.PageSize()

	if old, ok := ext.Entry.Pba(); ok {
		data, spare, err := d.medium.ReadBlock(old)
		if err != nil {
			return &TransportError{Op: "read-block", Address: g.BlockAddress(old), Err: err}
		}
		copy(s.data, data)
		for page := uint32(0); page < g.PagesPerBlock(); page++ {
			if page >= ext.PageOffset && page < ext.PageOffset+ext.PageCount {
				continue
			}
			d.verifyPage(old, page, data[page*ps:(page+1)*ps], spare[page*types.SpareSize:])
		}
	} else {
		clear(s.data)
	}

	copy(s.data[ext.PageOffset*ps:], src)

	rel := g.ZoneRelative(ext.Lba)
	for page := uint32(0); page < g.PagesPerBlock(); page++ {
		copy(s.spare[page*types.SpareSize:], oob.StampPage(rel, s.data[page*ps:(page+1)*ps]))
	}
	return nil
}

// program writes the staged block to target.
func (d *Device) program(s *stage, target types.Pba) (interfaces.WriteAck, error) {
	address := d.geometry.BlockAddress(target)
	ack, err := d.medium.WriteBlock(interfaces.WriteRequest{
		Address: address,
		Data:    s.data,
		Spare:   s.spare,
		Fresh:   d.table.Owner(target).Kind() == types.EntryUndefined,
	})
	if err != nil {
		return ack, &TransportError{Op: "write-block", Address: address, Err: err}
	}
	return ack, nil
}

// commit applies the medium's acknowledgement of a block write to the table.
// The block the medium reports is authoritative, whichever block was requested.
func (d *Device) commit(lba types.Lba, requested types.Pba, ack interfaces.WriteAck) error {
	reported := ack.Committed
	if err := d.checkCommitted(lba, reported); err != nil {
		d.fault(err)
		return err
	}

	if ack.Failed {
		d.table.MarkBad(reported)
		d.stats.BadBlocks++
		glog.Warningf("ftl[%s]: program of %s for %s failed, block retired", d.session, reported, lba)
		return fmt.Errorf("%w: %s", ErrBadBlock, reported)
	}

	if reported != requested {
		d.stats.Substitutions++
		glog.V(1).Infof("ftl[%s]: medium committed %s to %s instead of %s", d.session, lba, reported, requested)
	}

	old, retired := d.table.Remap(lba, reported)
	d.stats.BlockWrites++
	if retired {
		d.stats.Remaps++
		d.retire(old)
	}
	return nil
}

// checkCommitted rejects a reported block that the table cannot accept
// without breaking the one-to-one mapping.
func (d *Device) checkCommitted(lba types.Lba, reported types.Pba) error {
	g := d.geometry
	if reported.IsReserved() || uint32(reported) >= g.TotalBlocks() {
		return fmt.Errorf("%w: %s committed to reserved or invalid %s", ErrMapInconsistency, lba, reported)
	}
	if g.ZoneOf(reported) != g.LogicalZone(lba) {
		return fmt.Errorf("%w: %s committed to %s outside zone %d", ErrMapInconsistency, lba, reported, g.LogicalZone(lba))
	}

	owner := d.table.Owner(reported)
	switch owner.Kind() {
	case types.EntryBadBlock:
		return fmt.Errorf("%w: %s committed to bad %s", ErrMapInconsistency, lba, reported)
	case types.EntryMapped:
		if other, _ := owner.Lba(); other != lba {
			return fmt.Errorf("%w: %s committed to %s which holds %s", ErrMapInconsistency, lba, reported, other)
		}
	}
	return nil
}

// retire erases a block that no longer holds a logical block. The block
// still carries the stamp of the logical block that moved away, and a map
// rebuild keeps the lowest stamped block, so the stamp must not survive.
//
// When the erase fails, the control field of page 0 is programmed to zeros,
// which the map builder classifies as unusable, and the block is kept out of
// allocation for the life of the table. If that program fails as well a
// rebuild may map the stale copy again; that is logged as an error.
func (d *Device) retire(pba types.Pba) {
	err := d.medium.EraseBlock(d.geometry.BlockAddress(pba))
	if err == nil {
		return
	}
	glog.Warningf("ftl[%s]: erase of retired %s failed: %v", d.session, pba, err)

	d.table.MarkBad(pba)
	d.stats.BadBlocks++
	if err := d.medium.ProgramSpare(pba, 0, make([]byte, types.SpareSize)); err != nil {
		glog.Errorf("ftl[%s]: retired %s still carries a valid stamp: %v", d.session, pba, err)
	}
}
