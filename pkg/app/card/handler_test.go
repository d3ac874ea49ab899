package card

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-smartmedia/pkg/app"
)

func testContext() *app.Context {
	ctx := app.NewContext()
	ctx.Out = new(bytes.Buffer)
	ctx.ErrOut = new(bytes.Buffer)
	return ctx
}

func formatImage(t *testing.T, req FormatRequest) string {
	t.Helper()
	if req.ImagePath == "" {
		req.ImagePath = filepath.Join(t.TempDir(), "card.img")
	}
	if req.DeviceID == 0 {
		req.DeviceID = 0x6e
	}
	_, err := Format(testContext(), &req)
	require.NoError(t, err)
	return req.ImagePath
}

func TestFormatAndInfo(t *testing.T) {
	path := formatImage(t, FormatRequest{BadBlocks: []uint32{7, 8}})

	resp, err := Info(testContext(), &InfoRequest{Session: Session{ImagePath: path}})
	require.NoError(t, err)

	assert.Equal(t, "0x6e", resp.Geometry.DeviceID)
	assert.Equal(t, uint64(4000), resp.Sectors)
	assert.Equal(t, uint32(256), resp.SectorSize)
	assert.Equal(t, uint64(4000*256), resp.CapacityBytes)
	assert.Equal(t, "allocate", resp.Policy)
	assert.False(t, resp.WriteProtected)
	assert.NotEmpty(t, resp.SessionID)
	require.Len(t, resp.Zones, 1)
	assert.Equal(t, 2, resp.Zones[0].Bad)
	assert.Equal(t, 252, resp.Zones[0].Free)
}

func TestWriteReadRoundTrip(t *testing.T) {
	for _, policy := range []string{"allocate", "in-place"} {
		t.Run(policy, func(t *testing.T) {
			path := formatImage(t, FormatRequest{})
			session := Session{ImagePath: path, Policy: policy, WearSkip: 16}

			payload := bytes.Repeat([]byte("smartmedia"), 100) // 1000 bytes, not sector aligned
			input := filepath.Join(t.TempDir(), "input.bin")
			require.NoError(t, os.WriteFile(input, payload, 0o644))

			wresp, err := Write(testContext(), &WriteRequest{Session: session, Sector: 30, InputPath: input})
			require.NoError(t, err)
			assert.Equal(t, uint32(4), wresp.Count)
			assert.Equal(t, 1000, wresp.Bytes)
			assert.Equal(t, 24, wresp.Padded)
			assert.Equal(t, uint64(4), wresp.Stats.SectorsWritten)

			output := filepath.Join(t.TempDir(), "output.bin")
			rresp, err := Read(testContext(), &ReadRequest{
				Session:    session,
				Range:      app.SectorRange{Sector: 30, Count: 4},
				OutputPath: output,
			})
			require.NoError(t, err)
			assert.Equal(t, 1024, rresp.Bytes)
			assert.Equal(t, payload, rresp.Data[:1000])
			assert.Equal(t, make([]byte, 24), rresp.Data[1000:])

			saved, err := os.ReadFile(output)
			require.NoError(t, err)
			assert.Equal(t, rresp.Data, saved)
		})
	}
}

func TestReadUnwrittenSectors(t *testing.T) {
	path := formatImage(t, FormatRequest{})
	resp, err := Read(testContext(), &ReadRequest{
		Session: Session{ImagePath: path},
		Range:   app.SectorRange{Sector: 0, Count: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 512), resp.Data)
	assert.Equal(t, uint64(2), resp.ZeroFilled)
}

func TestMap(t *testing.T) {
	path := formatImage(t, FormatRequest{BadBlocks: []uint32{9}})
	session := Session{ImagePath: path}

	_, err := Write(testContext(), &WriteRequest{Session: session, Sector: 16 * 3, Data: []byte{1, 2, 3}})
	require.NoError(t, err)

	resp, err := Map(testContext(), &MapRequest{Session: session, Zone: -1, MappedOnly: true})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, 1, resp.Mapped)
	require.NotNil(t, resp.Entries[0].Lba)
	assert.Equal(t, uint32(3), *resp.Entries[0].Lba)
	assert.Equal(t, "mapped", resp.Entries[0].State)
	require.NotNil(t, resp.Entries[0].ZoneLba)
	assert.Equal(t, uint16(3), *resp.Entries[0].ZoneLba)

	all, err := Map(testContext(), &MapRequest{Session: session, Zone: 0})
	require.NoError(t, err)
	assert.Len(t, all.Entries, 256)
	assert.Equal(t, "unusable", all.Entries[0].State)
	assert.Equal(t, "bad", all.Entries[9].State)

	_, err = Map(testContext(), &MapRequest{Session: session, Zone: 1})
	assert.Equal(t, app.ErrCodeInvalidInput, app.ErrorCode(err))
}

func TestMap_SecondZone(t *testing.T) {
	path := formatImage(t, FormatRequest{DeviceID: 0x75})
	session := Session{ImagePath: path}

	_, err := Write(testContext(), &WriteRequest{Session: session, Sector: 1003 * 32, Data: []byte{0xAA}})
	require.NoError(t, err)

	resp, err := Map(testContext(), &MapRequest{Session: session, Zone: 1, MappedOnly: true})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)
	e := resp.Entries[0]
	assert.Equal(t, uint32(1), e.Zone)
	assert.GreaterOrEqual(t, e.Pba, uint32(1024))
	assert.Equal(t, uint32(1003), *e.Lba)
	assert.Equal(t, uint16(3), *e.ZoneLba)
}

func TestDevices(t *testing.T) {
	resp := Devices(testContext())
	require.NotEmpty(t, resp.Devices)

	ids := make(map[string]GeometryInfo)
	for _, g := range resp.Devices {
		ids[g.DeviceID] = g
	}
	assert.Equal(t, "16MB", ids["0x73"].Name)
	assert.Equal(t, uint32(2), ids["0x75"].Zones)
	assert.True(t, ids["0x5d"].ROM)

	var buf bytes.Buffer
	require.NoError(t, FormatOutput(&buf, resp, "table"))
	assert.Contains(t, buf.String(), "128MB")
}

func TestStats(t *testing.T) {
	path := formatImage(t, FormatRequest{})
	session := Session{ImagePath: path}

	_, err := Write(testContext(), &WriteRequest{Session: session, Sector: 0, Data: bytes.Repeat([]byte{0x5a}, 256*20)})
	require.NoError(t, err)

	ctx := testContext()
	var progress []int
	ctx.SetProgress(func(_ string, percent int) { progress = append(progress, percent) })

	resp, err := Stats(ctx, &StatsRequest{Session: session})
	require.NoError(t, err)
	assert.Equal(t, uint64(32), resp.Scanned)
	assert.Empty(t, resp.Mismatches)
	assert.Equal(t, 2, resp.Stats.MappedBlocks)
	assert.NotZero(t, resp.Medium.BytesRead)
	assert.Contains(t, resp.OpsTable, "read-block")
	require.NotEmpty(t, progress)
	assert.Equal(t, 100, progress[len(progress)-1])
}

func TestErrorCodes(t *testing.T) {
	protected := formatImage(t, FormatRequest{WriteProtect: true})
	_, err := Write(testContext(), &WriteRequest{Session: Session{ImagePath: protected}, Data: []byte{1}})
	assert.Equal(t, app.ErrCodeWriteProtected, app.ErrorCode(err))

	path := formatImage(t, FormatRequest{})
	_, err = Read(testContext(), &ReadRequest{
		Session: Session{ImagePath: path},
		Range:   app.SectorRange{Sector: 3999, Count: 2},
	})
	assert.Equal(t, app.ErrCodeInvalidInput, app.ErrorCode(err))

	_, err = Info(testContext(), &InfoRequest{Session: Session{ImagePath: filepath.Join(t.TempDir(), "missing.img")}})
	assert.Equal(t, app.ErrCodeCardAccess, app.ErrorCode(err))

	notImage := filepath.Join(t.TempDir(), "junk.img")
	require.NoError(t, os.WriteFile(notImage, make([]byte, 8192), 0o644))
	_, err = Info(testContext(), &InfoRequest{Session: Session{ImagePath: notImage}})
	assert.Equal(t, app.ErrCodeCardAccess, app.ErrorCode(err))
}

func TestSessionOptions(t *testing.T) {
	opts, err := Session{ImagePath: "x", Policy: "in-place", WearSkip: 4, VerifyReads: true}.Options()
	require.NoError(t, err)
	assert.Equal(t, "in-place", opts.Policy.String())
	assert.Equal(t, 4, opts.WearSkip)
	assert.True(t, opts.VerifyReads)

	opts, err = Session{ImagePath: "x"}.Options()
	require.NoError(t, err)
	assert.Equal(t, "allocate", opts.Policy.String())

	_, err = Session{ImagePath: "x", Policy: "bogus"}.Options()
	assert.Error(t, err)
}
