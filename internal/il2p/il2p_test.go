package il2p_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kb9xyz/packetnode/internal/ax25"
	"github.com/kb9xyz/packetnode/internal/il2p"
)

func mustAddr(t *testing.T, s string) ax25.Address {
	t.Helper()
	a, err := ax25.ParseAddress(s)
	require.NoError(t, err)
	return a
}

func decodeOne(t require.TestingT, encoded []byte) il2p.Frame {
	var got []il2p.Frame
	var frameErr error
	r := il2p.NewReceiver(func(f il2p.Frame) { got = append(got, f) }, func(err error) {
		frameErr = err
	})
	r.FeedBytes(encoded)
	require.NoError(t, frameErr)
	require.Len(t, got, 1)
	return got[0]
}

func TestHeaderRoundTripIFrame(t *testing.T) {
	dest, src := mustAddr(t, "N0CALL-1"), mustAddr(t, "N0CALL-2")
	p := ax25.NewI(dest, src, true, 3, 5, 0xF0, []byte("hello, packet radio"))

	encoded, err := il2p.Encode(p)
	require.NoError(t, err)

	f := decodeOne(t, encoded)
	assert.Equal(t, ax25.FrameI, f.Packet.Type)
	assert.Equal(t, uint8(3), f.Packet.NR)
	assert.Equal(t, uint8(5), f.Packet.NS)
	assert.True(t, f.Packet.PF)
	assert.Equal(t, byte(0xF0), f.Packet.PID)
	assert.Equal(t, []byte("hello, packet radio"), f.Packet.Info)
	assert.Equal(t, "N0CALL-1", f.Packet.Dest.String())
	assert.Equal(t, "N0CALL-2", f.Packet.Source.String())
}

func TestHeaderRoundTripSupervisoryNoPayload(t *testing.T) {
	dest, src := mustAddr(t, "KB9XYZ-1"), mustAddr(t, "KB9XYZ-2")
	p := ax25.NewRR(dest, src, ax25.CRResponse, true, 6)

	encoded, err := il2p.Encode(p)
	require.NoError(t, err)

	f := decodeOne(t, encoded)
	assert.Equal(t, ax25.FrameRR, f.Packet.Type)
	assert.Equal(t, uint8(6), f.Packet.NR)
	assert.Empty(t, f.Packet.Info)
}

func TestHeaderRoundTripSABMUA(t *testing.T) {
	dest, src := mustAddr(t, "N0CALL"), mustAddr(t, "N0CALL-7")
	sabm := ax25.NewSABM(dest, src, true)
	encoded, err := il2p.Encode(sabm)
	require.NoError(t, err)
	f := decodeOne(t, encoded)
	assert.Equal(t, ax25.FrameSABM, f.Packet.Type)
	assert.True(t, f.Packet.PF)
}

func TestPayloadBoundaryLengths(t *testing.T) {
	dest, src := mustAddr(t, "N0CALL-1"), mustAddr(t, "N0CALL-2")
	for _, n := range []int{0, 1, 238, 239, 240, 478, 479, 1022, 1023} {
		t.Run("", func(t *testing.T) {
			info := make([]byte, n)
			for i := range info {
				info[i] = byte(i)
			}
			p := ax25.NewI(dest, src, false, 0, 0, 0xF0, info)
			encoded, err := il2p.Encode(p)
			require.NoError(t, err)
			f := decodeOne(t, encoded)
			assert.Equal(t, info, f.Packet.Info)
		})
	}
}

func TestPayloadTooLongRejected(t *testing.T) {
	dest, src := mustAddr(t, "N0CALL-1"), mustAddr(t, "N0CALL-2")
	p := ax25.NewI(dest, src, false, 0, 0, 0xF0, make([]byte, il2p.MaxPayloadSize+1))
	_, err := il2p.Encode(p)
	assert.Error(t, err)
}

// TestSyncAcquisitionToleratesOneBitError checks that the sync word is
// still recognized with a single flipped bit (spec §4.5's Hamming-distance
// tolerant acquisition).
func TestSyncAcquisitionToleratesOneBitError(t *testing.T) {
	dest, src := mustAddr(t, "N0CALL-1"), mustAddr(t, "N0CALL-2")
	p := ax25.NewRR(dest, src, ax25.CRResponse, false, 0)
	encoded, err := il2p.Encode(p)
	require.NoError(t, err)

	encoded[1] ^= 0x01 // flip one bit inside the 3-byte sync word

	f := decodeOne(t, encoded)
	assert.Equal(t, ax25.FrameRR, f.Packet.Type)
}

func TestRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		nr := uint8(rapid.IntRange(0, 7).Draw(rt, "nr"))
		ns := uint8(rapid.IntRange(0, 7).Draw(rt, "ns"))
		pf := rapid.Bool().Draw(rt, "pf")
		infoLen := rapid.IntRange(0, 512).Draw(rt, "infoLen")
		info := rapid.SliceOfN(rapid.Byte(), infoLen, infoLen).Draw(rt, "info")

		dest := ax25.Address{Call: "N0CALL", SSID: uint8(rapid.IntRange(0, 15).Draw(rt, "dssid"))}
		src := ax25.Address{Call: "N0CALL", SSID: uint8(rapid.IntRange(0, 15).Draw(rt, "sssid"))}

		p := ax25.NewI(dest, src, pf, nr, ns, 0xF0, info)
		encoded, err := il2p.Encode(p)
		require.NoError(rt, err)

		f := decodeOne(rt, encoded)
		assert.Equal(rt, p.NR, f.Packet.NR)
		assert.Equal(rt, p.NS, f.Packet.NS)
		assert.Equal(rt, p.PF, f.Packet.PF)
		assert.Equal(rt, p.Info, f.Packet.Info)
	})
}
