package medium

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-smartmedia/internal/interfaces"
	"github.com/deploymenttheory/go-smartmedia/internal/parsers/oob"
	"github.com/deploymenttheory/go-smartmedia/internal/types"
)

const smallCard = 0x6e // 1MB, 256-byte pages, 16 pages per block

func blockPayload(g types.CardGeometry, seed byte) ([]byte, []byte) {
	data := make([]byte, g.BlockSize())
	for i := range data {
		data[i] = seed + byte(i)
	}
	spare := make([]byte, 0, g.BlockSpareSize())
	for p := uint32(0); p < g.PagesPerBlock(); p++ {
		page := data[p*g.PageSize() : (p+1)*g.PageSize()]
		spare = append(spare, oob.StampPage(7, page)...)
	}
	return data, spare
}

func TestNewMemCard_Erased(t *testing.T) {
	card, err := NewMemCard(FormatOptions{DeviceID: smallCard})
	require.NoError(t, err)
	defer card.Close()

	g := card.Geometry()
	assert.Equal(t, uint32(256), g.TotalBlocks())

	id, err := card.Identify()
	require.NoError(t, err)
	assert.Equal(t, byte(smallCard), id)

	spare, err := card.ReadOOB(0, g.TotalBlocks())
	require.NoError(t, err)
	require.Len(t, spare, int(g.TotalBlocks())*types.SpareSize)
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, len(spare)), spare)

	data, err := card.ReadPages(g.PageAddress(10, 3), 2*g.PageSize())
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, int(2*g.PageSize())), data)
}

func TestNewMemCard_UnknownDevice(t *testing.T) {
	_, err := NewMemCard(FormatOptions{DeviceID: 0x01})
	assert.ErrorIs(t, err, types.ErrUnknownDevice)
}

func TestCardImage_WriteAndReadBlock(t *testing.T) {
	card, err := NewMemCard(FormatOptions{DeviceID: smallCard})
	require.NoError(t, err)
	g := card.Geometry()

	data, spare := blockPayload(g, 3)
	ack, err := card.WriteBlock(interfaces.WriteRequest{Address: g.BlockAddress(20), Data: data, Spare: spare, Fresh: true})
	require.NoError(t, err)
	assert.Equal(t, types.Pba(20), ack.Committed)
	assert.False(t, ack.Failed)

	gotData, gotSpare, err := card.ReadBlock(20)
	require.NoError(t, err)
	assert.Equal(t, data, gotData)
	assert.Equal(t, spare, gotSpare)

	pages, err := card.ReadPages(g.PageAddress(20, 5), g.PageSize())
	require.NoError(t, err)
	assert.Equal(t, data[5*g.PageSize():6*g.PageSize()], pages)

	oobs, err := card.ReadOOB(20, 1)
	require.NoError(t, err)
	assert.Equal(t, oob.StateMapped, oob.Classify(oobs))

	assert.Equal(t, uint32(1), card.EraseCount(20))
	assert.Equal(t, uint64(1), card.Statistics().FreshWrites())

	// a rewrite erases first, so new contents replace old ones
	data2, spare2 := blockPayload(g, 99)
	_, err = card.WriteBlock(interfaces.WriteRequest{Address: g.BlockAddress(20), Data: data2, Spare: spare2})
	require.NoError(t, err)
	gotData, _, err = card.ReadBlock(20)
	require.NoError(t, err)
	assert.Equal(t, data2, gotData)
	assert.Equal(t, uint32(2), card.EraseCount(20))
}

func TestCardImage_EraseBlock(t *testing.T) {
	card, err := NewMemCard(FormatOptions{DeviceID: smallCard})
	require.NoError(t, err)
	g := card.Geometry()

	data, spare := blockPayload(g, 1)
	_, err = card.WriteBlock(interfaces.WriteRequest{Address: g.BlockAddress(4), Data: data, Spare: spare})
	require.NoError(t, err)

	require.NoError(t, card.EraseBlock(g.BlockAddress(4)))
	gotData, gotSpare, err := card.ReadBlock(4)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, len(gotData)), gotData)
	assert.Equal(t, bytes.Repeat([]byte{0xFF}, len(gotSpare)), gotSpare)
}

func TestCardImage_BadBlocksFormatted(t *testing.T) {
	card, err := NewMemCard(FormatOptions{DeviceID: smallCard, BadBlocks: []types.Pba{5, 77}})
	require.NoError(t, err)

	spare, err := card.ReadOOB(0, 100)
	require.NoError(t, err)
	assert.Equal(t, oob.StateBadBlock, oob.Classify(spare[5*types.SpareSize:]))
	assert.Equal(t, oob.StateBadBlock, oob.Classify(spare[77*types.SpareSize:]))
	assert.Equal(t, oob.StateErased, oob.Classify(spare[6*types.SpareSize:]))

	_, err = NewMemCard(FormatOptions{DeviceID: smallCard, BadBlocks: []types.Pba{4096}})
	assert.ErrorIs(t, err, ErrBadAddress)
}

func TestCardImage_WriteProtect(t *testing.T) {
	card, err := NewMemCard(FormatOptions{DeviceID: smallCard, WriteProtect: true})
	require.NoError(t, err)
	g := card.Geometry()

	wp, err := card.WriteProtected()
	require.NoError(t, err)
	assert.True(t, wp)

	data, spare := blockPayload(g, 0)
	_, err = card.WriteBlock(interfaces.WriteRequest{Address: g.BlockAddress(3), Data: data, Spare: spare})
	assert.ErrorIs(t, err, ErrWriteProtected)
	assert.ErrorIs(t, card.EraseBlock(g.BlockAddress(3)), ErrWriteProtected)

	card.SetWriteProtect(false)
	_, err = card.WriteBlock(interfaces.WriteRequest{Address: g.BlockAddress(3), Data: data, Spare: spare})
	assert.NoError(t, err)
}

func TestCardImage_RejectsBadRequests(t *testing.T) {
	card, err := NewMemCard(FormatOptions{DeviceID: smallCard})
	require.NoError(t, err)
	g := card.Geometry()
	data, spare := blockPayload(g, 0)

	_, err = card.WriteBlock(interfaces.WriteRequest{Address: g.BlockAddress(3) + 1, Data: data, Spare: spare})
	assert.ErrorIs(t, err, ErrBadAddress)

	_, err = card.WriteBlock(interfaces.WriteRequest{Address: g.BlockAddress(3), Data: data[:10], Spare: spare})
	assert.ErrorIs(t, err, ErrBadAddress)

	_, err = card.ReadPages(1, g.PageSize())
	assert.ErrorIs(t, err, ErrBadAddress)

	_, err = card.ReadOOB(250, 10)
	assert.ErrorIs(t, err, ErrBadAddress)
}

func TestFaults(t *testing.T) {
	card, err := NewMemCard(FormatOptions{DeviceID: smallCard})
	require.NoError(t, err)
	g := card.Geometry()
	data, spare := blockPayload(g, 5)

	t.Run("substitution", func(t *testing.T) {
		card.Faults().Substitute(30, 31)
		ack, err := card.WriteBlock(interfaces.WriteRequest{Address: g.BlockAddress(30), Data: data, Spare: spare})
		require.NoError(t, err)
		assert.Equal(t, types.Pba(31), ack.Committed)

		got, _, err := card.ReadBlock(31)
		require.NoError(t, err)
		assert.Equal(t, data, got)

		// one-shot
		ack, err = card.WriteBlock(interfaces.WriteRequest{Address: g.BlockAddress(30), Data: data, Spare: spare})
		require.NoError(t, err)
		assert.Equal(t, types.Pba(30), ack.Committed)
	})

	t.Run("program failure", func(t *testing.T) {
		card.Faults().FailProgram(40)
		ack, err := card.WriteBlock(interfaces.WriteRequest{Address: g.BlockAddress(40), Data: data, Spare: spare})
		require.NoError(t, err)
		assert.True(t, ack.Failed)
		assert.Equal(t, types.Pba(40), ack.Committed)
		assert.Equal(t, uint64(1), card.Statistics().FailedWrites())
	})

	t.Run("transport failures", func(t *testing.T) {
		card.Faults().FailTransfer(41)
		_, err := card.WriteBlock(interfaces.WriteRequest{Address: g.BlockAddress(41), Data: data, Spare: spare})
		assert.ErrorIs(t, err, ErrInjected)

		card.Faults().FailReads(true)
		_, err = card.ReadPages(0, g.PageSize())
		assert.ErrorIs(t, err, ErrInjected)
		_, _, err = card.ReadBlock(2)
		assert.ErrorIs(t, err, ErrInjected)

		card.Faults().FailOOBReads(true)
		_, err = card.ReadOOB(0, 1)
		assert.ErrorIs(t, err, ErrInjected)

		card.Faults().Reset()
		_, err = card.ReadOOB(0, 1)
		assert.NoError(t, err)
	})

	t.Run("erase failure", func(t *testing.T) {
		card.Faults().FailErases(true)
		assert.ErrorIs(t, card.EraseBlock(g.BlockAddress(30)), ErrInjected)
		card.Faults().Reset()
		assert.NoError(t, card.EraseBlock(g.BlockAddress(30)))
	})
}

func TestCardImage_ProgramSpare(t *testing.T) {
	card, err := NewMemCard(FormatOptions{DeviceID: smallCard})
	require.NoError(t, err)
	g := card.Geometry()
	data, spare := blockPayload(g, 9)
	_, err = card.WriteBlock(interfaces.WriteRequest{Address: g.BlockAddress(20), Data: data, Spare: spare})
	require.NoError(t, err)

	// bits already clear stay clear
	ones := make([]byte, types.SpareSize)
	for i := range ones {
		ones[i] = 0xFF
	}
	require.NoError(t, card.ProgramSpare(20, 0, ones))
	oobs, err := card.ReadOOB(20, 1)
	require.NoError(t, err)
	assert.Equal(t, spare[:types.SpareSize], oobs)

	require.NoError(t, card.ProgramSpare(20, 0, make([]byte, types.SpareSize)))
	oobs, err = card.ReadOOB(20, 1)
	require.NoError(t, err)
	assert.Equal(t, oob.StateUnusable, oob.Classify(oobs))

	got, _, err := card.ReadBlock(20)
	require.NoError(t, err)
	assert.Equal(t, data, got, "page data is untouched")
	assert.Equal(t, uint32(2), card.Statistics().OpCount("program-spare"))

	assert.ErrorIs(t, card.ProgramSpare(20, g.PagesPerBlock(), ones), ErrBadAddress)
	assert.ErrorIs(t, card.ProgramSpare(20, 0, ones[:4]), ErrBadAddress)
	card.SetWriteProtect(true)
	assert.ErrorIs(t, card.ProgramSpare(20, 0, ones), ErrWriteProtected)
}

func TestCreateAndOpenImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.img")

	card, err := CreateImage(path, FormatOptions{DeviceID: smallCard, BadBlocks: []types.Pba{9}})
	require.NoError(t, err)
	g := card.Geometry()
	data, spare := blockPayload(g, 42)
	_, err = card.WriteBlock(interfaces.WriteRequest{Address: g.BlockAddress(12), Data: data, Spare: spare})
	require.NoError(t, err)
	card.SetWriteProtect(true)
	require.NoError(t, card.Close())

	reopened, err := OpenImage(path)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, g, reopened.Geometry())
	assert.Equal(t, path, reopened.Path())
	wp, err := reopened.WriteProtected()
	require.NoError(t, err)
	assert.True(t, wp)

	got, _, err := reopened.ReadBlock(12)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	oobs, err := reopened.ReadOOB(9, 1)
	require.NoError(t, err)
	assert.Equal(t, oob.StateBadBlock, oob.Classify(oobs))
}

func TestOpenImage_Rejects(t *testing.T) {
	_, err := OpenImage(filepath.Join(t.TempDir(), "missing.img"))
	assert.Error(t, err)
}

func TestStatisticsTable(t *testing.T) {
	card, err := NewMemCard(FormatOptions{DeviceID: smallCard})
	require.NoError(t, err)
	_, err = card.ReadOOB(0, 4)
	require.NoError(t, err)

	assert.Equal(t, uint32(1), card.Statistics().OpCount("read-oob"))
	out := card.Statistics().FormatTable()
	assert.Contains(t, out, "read-oob")
	assert.Contains(t, out, "write-block")
}

func TestWear(t *testing.T) {
	card, err := NewMemCard(FormatOptions{DeviceID: smallCard})
	require.NoError(t, err)
	require.NoError(t, card.EraseBlock(card.Geometry().BlockAddress(3)))
	require.NoError(t, card.EraseBlock(card.Geometry().BlockAddress(3)))

	w := card.Wear()
	assert.Equal(t, 256, w.Blocks)
	assert.Equal(t, uint32(0), w.MinErases)
	assert.Equal(t, uint32(2), w.MaxErases)
	assert.Equal(t, 255, w.Untouched)
}

func TestLoadCardConfigFrom(t *testing.T) {
	v := viper.New()
	cfg, err := LoadCardConfigFrom(v)
	require.NoError(t, err)
	assert.Equal(t, 0x73, cfg.DeviceID)
	assert.Equal(t, "allocate", cfg.WritePolicy)
	assert.Equal(t, 16, cfg.WearSkip)
	assert.Equal(t, "./card.img", cfg.ImagePath)

	v = viper.New()
	v.Set("device_id", 0x1FF)
	_, err = LoadCardConfigFrom(v)
	assert.Error(t, err)

	v = viper.New()
	v.Set("wear_skip", -1)
	_, err = LoadCardConfigFrom(v)
	assert.Error(t, err)
}
