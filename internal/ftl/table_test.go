package ftl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-smartmedia/internal/types"
)

func smallGeometry(t *testing.T) types.CardGeometry {
	t.Helper()
	g, err := types.LookupGeometry(smallCard)
	require.NoError(t, err)
	return g
}

func TestTranslationTable_Remap(t *testing.T) {
	table := NewTranslationTable(smallGeometry(t))

	_, retired := table.Remap(4, 40)
	assert.False(t, retired)
	assert.Equal(t, 1, table.LbaCount())

	old, retired := table.Remap(4, 41)
	require.True(t, retired)
	assert.Equal(t, types.Pba(40), old)
	assert.Equal(t, types.Unused, table.Owner(40))
	assert.True(t, table.Owner(40).IsFree())
	assert.Equal(t, types.MappedPba(41), table.Lookup(4))
	assert.Equal(t, 1, table.LbaCount())

	_, retired = table.Remap(4, 41)
	assert.False(t, retired)

	assert.NoError(t, table.Validate())
}

func TestTranslationTable_MarkBad(t *testing.T) {
	table := NewTranslationTable(smallGeometry(t))
	table.Remap(2, 11)

	table.MarkBad(11)
	assert.Equal(t, types.Undefined, table.Lookup(2))
	assert.Equal(t, types.BadBlock, table.Owner(11))
	assert.False(t, table.Owner(11).IsFree())
	assert.Equal(t, 0, table.LbaCount())

	table.MarkBad(12)
	assert.Equal(t, types.BadBlock, table.Owner(12))
}

func TestTranslationTable_OutOfRange(t *testing.T) {
	table := NewTranslationTable(smallGeometry(t))
	assert.Equal(t, types.Undefined, table.Lookup(100000))
	assert.Equal(t, types.Unusable, table.Owner(100000))
}

func TestTranslationTable_Validate(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(*TranslationTable)
	}{
		{"dangling reverse entry", func(tb *TranslationTable) {
			tb.pbaToLba[50] = types.MappedLba(7)
		}},
		{"dangling forward entry", func(tb *TranslationTable) {
			tb.lbaToPba[7] = types.MappedPba(50)
		}},
		{"reserved block mapped", func(tb *TranslationTable) {
			tb.lbaToPba[7] = types.MappedPba(1)
			tb.pbaToLba[1] = types.MappedLba(7)
		}},
		{"crossed entries", func(tb *TranslationTable) {
			tb.Remap(1, 20)
			tb.Remap(2, 21)
			tb.pbaToLba[20] = types.MappedLba(2)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := NewTranslationTable(smallGeometry(t))
			tt.corrupt(table)
			assert.Error(t, table.Validate())
		})
	}
}

func TestFindFreeBlock(t *testing.T) {
	table := NewTranslationTable(smallGeometry(t))
	for p := types.Pba(2); p < 256; p++ {
		if p != 10 && p != 20 && p != 30 {
			table.MarkBad(p)
		}
	}

	tests := []struct {
		skip int
		want types.Pba
	}{
		{0, 10},
		{1, 20},
		{2, 30},
		{16, 30},
	}
	for _, tt := range tests {
		got, ok := table.findFreeBlock(0, tt.skip)
		require.True(t, ok)
		assert.Equal(t, tt.want, got, "skip %d", tt.skip)
	}

	got, ok := table.findFreeFrom(0, 25)
	require.True(t, ok)
	assert.Equal(t, types.Pba(30), got)

	got, ok = table.findFreeFrom(0, 31)
	require.True(t, ok)
	assert.Equal(t, types.Pba(10), got, "wraps to the zone start")

	table.MarkBad(10)
	table.MarkBad(20)
	table.MarkBad(30)
	_, ok = table.findFreeBlock(0, 16)
	assert.False(t, ok)
	_, ok = table.findFreeFrom(0, 2)
	assert.False(t, ok)
}

func TestFindFreeBlock_NeverReserved(t *testing.T) {
	table := NewTranslationTable(smallGeometry(t))
	for skip := 0; skip < 300; skip += 17 {
		p, ok := table.findFreeBlock(0, skip)
		require.True(t, ok)
		assert.False(t, p.IsReserved())
	}
	p, ok := table.findFreeFrom(0, 0)
	require.True(t, ok)
	assert.Equal(t, types.Pba(2), p)
}

func TestResolve(t *testing.T) {
	g := smallGeometry(t)
	table := NewTranslationTable(g)
	table.Remap(1, 40)

	got := Resolve(g, table, 14, 20)
	want := []Extent{
		{Lba: 0, Entry: types.Undefined, PageOffset: 14, PageCount: 2, BufferOffset: 0},
		{Lba: 1, Entry: types.MappedPba(40), PageOffset: 0, PageCount: 16, BufferOffset: 512},
		{Lba: 2, Entry: types.Undefined, PageOffset: 0, PageCount: 2, BufferOffset: 4608},
	}
	assert.Equal(t, want, got)

	assert.Empty(t, Resolve(g, table, 5, 0))

	single := Resolve(g, table, 21, 3)
	require.Len(t, single, 1)
	assert.Equal(t, uint32(5), single[0].PageOffset)
	assert.Equal(t, uint32(3), single[0].PageCount)
}
