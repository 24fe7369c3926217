package rs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kb9xyz/packetnode/internal/rs"
)

func TestEncodeDecodeNoErrors(t *testing.T) {
	c, err := rs.New(16)
	require.NoError(t, err)

	data := make([]byte, 239)
	for i := range data {
		data[i] = byte(i * 7)
	}
	parity := c.Encode(data)
	require.Len(t, parity, 16)

	corrected, err := c.Decode(data, parity)
	require.NoError(t, err)
	assert.Equal(t, 0, corrected)
}

func TestDecodeCorrectsErrors(t *testing.T) {
	c, err := rs.New(16)
	require.NoError(t, err)

	data := make([]byte, 239)
	for i := range data {
		data[i] = byte(i * 13)
	}
	parity := c.Encode(data)

	corrupted := append([]byte(nil), data...)
	corruptedParity := append([]byte(nil), parity...)
	corrupted[10] ^= 0xFF
	corrupted[100] ^= 0x01
	corruptedParity[2] ^= 0x80

	corrected, err := c.Decode(corrupted, corruptedParity)
	require.NoError(t, err)
	assert.Equal(t, 3, corrected)
	assert.Equal(t, data, corrupted)
}

func TestDecodeReportsUncorrectable(t *testing.T) {
	c, err := rs.New(16)
	require.NoError(t, err)

	data := make([]byte, 239)
	parity := c.Encode(data)

	// 9 errors exceeds the r/2=8 correction capacity.
	corrupted := append([]byte(nil), data...)
	for i := 0; i < 9; i++ {
		corrupted[i*20] ^= 0xFF
	}

	_, err = c.Decode(corrupted, parity)
	assert.ErrorIs(t, err, rs.ErrUncorrectable)
}

// TestRoundTripProperty is the §8 round-trip law: for r=16, k<=239, and any
// error pattern of at most 8 symbol errors in 255 positions,
// rs_decode(rs_encode(d) xor e) = d with correction count == weight(e).
func TestRoundTripProperty(t *testing.T) {
	c, err := rs.New(16)
	require.NoError(t, err)

	rapid.Check(t, func(rt *rapid.T) {
		k := rapid.IntRange(1, 239).Draw(rt, "k")
		data := rapid.SliceOfN(rapid.Byte(), k, k).Draw(rt, "data")
		numErrs := rapid.IntRange(0, 8).Draw(rt, "numErrs")

		parity := c.Encode(data)

		positions := map[int]bool{}
		total := len(data) + len(parity)
		for len(positions) < numErrs {
			positions[rapid.IntRange(0, total-1).Draw(rt, "pos")] = true
		}

		corrupted := append([]byte(nil), data...)
		corruptedParity := append([]byte(nil), parity...)
		for pos := range positions {
			flip := byte(rapid.IntRange(1, 255).Draw(rt, "flip"))
			if pos < len(corrupted) {
				corrupted[pos] ^= flip
			} else {
				corruptedParity[pos-len(corrupted)] ^= flip
			}
		}

		corrected, err := c.Decode(corrupted, corruptedParity)
		require.NoError(rt, err)
		assert.Equal(rt, len(positions), corrected)
		assert.Equal(rt, data, corrupted)
	})
}
