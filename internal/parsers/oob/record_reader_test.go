package oob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-smartmedia/internal/ecc"
	"github.com/deploymenttheory/go-smartmedia/internal/types"
)

func filled(n int, v byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = v
	}
	return b
}

func TestEncodeAddressField(t *testing.T) {
	tests := []struct {
		name string
		rel  uint16
		want uint16
	}{
		{"zero", 0, 0x1001},
		{"one", 1, 0x1002},
		{"last logical", 999, 0x17CF},
		{"field maximum", 1023, 0x17FF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field := EncodeAddressField(tt.rel)
			assert.Equal(t, tt.want, field)

			rel, ok := DecodeAddressField(field)
			require.True(t, ok)
			assert.Equal(t, tt.rel, rel)
		})
	}
}

func TestDecodeAddressField_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		field uint16
	}{
		{"wrong marker", 0x2001},
		{"marker with high bit", 0x1801},
		{"odd parity", 0x1000},
		{"flipped address bit", 0x1001 ^ 0x0004},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := DecodeAddressField(tt.field)
			assert.False(t, ok)
		})
	}
}

func TestClassify(t *testing.T) {
	stamped := Stamp(42, ecc.Code{1, 2, 3}, ecc.Code{4, 5, 6})

	corrupt := append([]byte(nil), stamped...)
	corrupt[types.SpareAddr1Offset+1] ^= 0x02

	badMarker := append([]byte(nil), stamped...)
	badMarker[types.SpareAddr1Offset] = 0x20

	tests := []struct {
		name  string
		spare []byte
		want  State
	}{
		{"all zero", make([]byte, types.SpareSize), StateUnusable},
		{"erased", filled(types.SpareSize, 0xFF), StateErased},
		{"bad block marker", BadBlockMarker(), StateBadBlock},
		{"stamped", stamped, StateMapped},
		{"parity failure", corrupt, StateUnusable},
		{"invalid marker nibble", badMarker, StateUnusable},
		{"short", []byte{0xFF}, StateUnusable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.spare))
		})
	}
}

func TestNewRecordReader(t *testing.T) {
	first := ecc.Code{0x11, 0x22, 0x33}
	second := ecc.Code{0x44, 0x55, 0x66}
	spare := Stamp(999, first, second)
	require.Len(t, spare, types.SpareSize)

	reader, err := NewRecordReader(spare)
	require.NoError(t, err)

	assert.Equal(t, StateMapped, reader.Classify())
	rel, ok := reader.ZoneRelativeLBA()
	require.True(t, ok)
	assert.Equal(t, uint16(999), rel)
	assert.Equal(t, first, reader.EccFirstHalf())
	assert.Equal(t, second, reader.EccSecondHalf())
	assert.Equal(t, byte(types.SpareGood), reader.DataStatus())
	assert.Equal(t, byte(types.SpareGood), reader.BlockStatus())
	assert.Equal(t, reader.record.AddressField, reader.record.AddressCopy)
	assert.Equal(t, [4]byte{0xFF, 0xFF, 0xFF, 0xFF}, reader.record.Reserved)
	assert.False(t, reader.IsErased())
}

func TestNewRecordReader_TooSmall(t *testing.T) {
	_, err := NewRecordReader(make([]byte, 8))
	assert.Error(t, err)
}

func TestStampPageAndVerify(t *testing.T) {
	page := make([]byte, 512)
	for i := range page {
		page[i] = byte(i * 7)
	}
	spare := StampPage(3, page)

	first, second := VerifyPage(page, spare)
	assert.True(t, first)
	assert.True(t, second)

	page[10] ^= 0x01
	first, second = VerifyPage(page, spare)
	assert.False(t, first)
	assert.True(t, second)

	page[300] ^= 0x80
	_, second = VerifyPage(page, spare)
	assert.False(t, second)
}

func TestVerifyPage_ErasedSpare(t *testing.T) {
	first, second := VerifyPage(make([]byte, 256), filled(types.SpareSize, 0xFF))
	assert.True(t, first)
	assert.True(t, second)
}
