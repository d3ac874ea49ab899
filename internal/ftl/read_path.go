package ftl

import (
	"github.com/golang/glog"

	"github.com/deploymenttheory/go-smartmedia/internal/parsers/oob"
	"github.com/deploymenttheory/go-smartmedia/internal/types"
)

// ReadSectors reads count sectors starting at sector into dest. Logical
// blocks that were never written read as zeros.
func (d *Device) ReadSectors(sector, count uint32, dest []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureMap(); err != nil {
		return err
	}
	if err := d.checkRequest(sector, count, dest); err != nil {
		return err
	}

	glog.V(2).Infof("ftl[%s]: read %d sectors at %d", d.session, count, sector)
	ps := d.geometry.PageSize()
	for _, ext := range Resolve(d.geometry, d.table, sector, count) {
		out := dest[ext.BufferOffset : ext.BufferOffset+ext.PageCount*ps]
		if err := d.readExtent(ext, out); err != nil {
			return err
		}
		d.stats.SectorsRead += uint64(ext.PageCount)
	}
	return nil
}

func (d *Device) readExtent(ext Extent, out []byte) error {
	pba, ok := ext.Entry.Pba()
	if !ok {
		clear(out)
		d.stats.ZeroFilled += uint64(ext.PageCount)
		return nil
	}

	g := d.geometry
	if d.opts.VerifyReads {
		return d.readVerified(pba, ext, out)
	}

	address := g.PageAddress(pba, ext.PageOffset)
	data, err := d.medium.ReadPages(address, uint32(len(out)))
	if err != nil {
		return &TransportError{Op: "read-pages", Address: address, Err: err}
	}
	copy(out, data)
	return nil
}

// readVerified reads the whole block so each requested page can be checked
// against its spare area. Mismatches are recorded and the data is returned as is.
func (d *Device) readVerified(pba types.Pba, ext Extent, out []byte) error {
	g := d.geometry
	data, spare, err := d.medium.ReadBlock(pba)
	if err != nil {
		return &TransportError{Op: "read-block", Address: g.BlockAddress(pba), Err: err}
	}

	ps := g.PageSize()
	for i := uint32(0); i < ext.PageCount; i++ {
		page := ext.PageOffset + i
		d.verifyPage(pba, page, data[page*ps:(page+1)*ps], spare[page*types.SpareSize:])
	}
	copy(out, data[ext.PageOffset*ps:])
	return nil
}

// verifyPage compares one page against its stored codes and records a
// mismatch. It reports whether the page verified.
func (d *Device) verifyPage(pba types.Pba, page uint32, data, spare []byte) bool {
	first, second := oob.VerifyPage(data, spare)
	if first && second {
		return true
	}
	d.recordMismatch(EccMismatch{Pba: pba, Page: page, FirstHalf: !first, SecondHalf: !second})
	return false
}
