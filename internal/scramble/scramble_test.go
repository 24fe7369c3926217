package scramble_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/kb9xyz/packetnode/internal/scramble"
)

func TestRoundTrip(t *testing.T) {
	data := []byte{0x00, 0xFF, 0x55, 0xAA, 0x01, 0x80, 0x7E, 0x13}
	scrambled := scramble.Block(data)
	assert.Equal(t, data, scramble.Deblock(scrambled))
}

func TestRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 64).Draw(rt, "n")
		data := rapid.SliceOfN(rapid.Byte(), n, n).Draw(rt, "data")
		assert.Equal(rt, data, scramble.Deblock(scramble.Block(data)))
	})
}
