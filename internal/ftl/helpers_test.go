package ftl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-smartmedia/internal/ecc"
	"github.com/deploymenttheory/go-smartmedia/internal/medium"
	"github.com/deploymenttheory/go-smartmedia/internal/parsers/oob"
	"github.com/deploymenttheory/go-smartmedia/internal/types"
)

const (
	smallCard   = 0x6e // 1MB: 256 blocks of 16 x 256-byte pages, one zone of 250 logical blocks
	sixteenMeg  = 0x73 // 16MB: 1024 blocks of 32 x 512-byte pages, one zone of 1000 logical blocks
	thirtyTwoMB = 0x75 // 32MB: two zones
)

func newCard(t *testing.T, opts medium.FormatOptions) *medium.CardImage {
	t.Helper()
	card, err := medium.NewMemCard(opts)
	require.NoError(t, err)
	t.Cleanup(func() { card.Close() })
	return card
}

func attach(t *testing.T, card *medium.CardImage, policy WritePolicy) *Device {
	t.Helper()
	opts := DefaultOptions()
	opts.Policy = policy
	d, err := Attach(card, opts)
	require.NoError(t, err)
	return d
}

func pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i*7) + byte(i>>8)
	}
	return b
}

// fakeOOB serves a canned spare area per block for map builder tests.
type fakeOOB struct {
	g      types.CardGeometry
	spares []byte
	err    error
}

func newFakeOOB(t *testing.T, id byte) *fakeOOB {
	t.Helper()
	g, err := types.LookupGeometry(id)
	require.NoError(t, err)
	spares := make([]byte, g.TotalBlocks()*types.SpareSize)
	for i := range spares {
		spares[i] = 0xFF
	}
	return &fakeOOB{g: g, spares: spares}
}

func (f *fakeOOB) set(p types.Pba, spare []byte) {
	copy(f.spares[int(p)*types.SpareSize:], spare)
}

func (f *fakeOOB) stamp(p types.Pba, rel uint16) {
	f.set(p, oob.Stamp(rel, ecc.Code{}, ecc.Code{}))
}

func (f *fakeOOB) Identify() (byte, error) {
	return f.g.DeviceID, nil
}

func (f *fakeOOB) ReadPages(uint64, uint32) ([]byte, error) {
	return nil, errors.New("page reads not supported")
}

func (f *fakeOOB) ReadOOB(start types.Pba, count uint32) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	from := int(start) * types.SpareSize
	return append([]byte(nil), f.spares[from:from+int(count)*types.SpareSize]...), nil
}

func (f *fakeOOB) ReadBlock(types.Pba) ([]byte, []byte, error) {
	return nil, nil, errors.New("block reads not supported")
}
