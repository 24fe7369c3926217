package kissframe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kb9xyz/packetnode/internal/kissframe"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := kissframe.Frame{Channel: 0, Command: kissframe.CmdDataFrame, Data: []byte{0xC0, 0xDB, 0x01, 0x02}}
	encoded := kissframe.Encode(f)

	var d kissframe.Decoder
	var got kissframe.Frame
	for _, b := range encoded {
		if f2, ok, err := d.Push(b); ok {
			require.NoError(t, err)
			got = f2
		} else {
			require.NoError(t, err)
		}
	}
	assert.Equal(t, f, got)
}

func TestEscapingSurvivesFENDAndFESCBytes(t *testing.T) {
	f := kissframe.Frame{Channel: 1, Command: kissframe.CmdDataFrame, Data: []byte{kissframe.FEND, kissframe.FESC, 0x00, 0xFF}}
	encoded := kissframe.Encode(f)
	assert.NotContains(t, encoded[1:len(encoded)-1], byte(kissframe.FEND))

	var d kissframe.Decoder
	var got kissframe.Frame
	for _, b := range encoded {
		if f2, ok, _ := d.Push(b); ok {
			got = f2
		}
	}
	assert.Equal(t, f, got)
}

func TestRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		channel := byte(rapid.IntRange(0, 15).Draw(rt, "channel"))
		n := rapid.IntRange(0, 64).Draw(rt, "n")
		data := rapid.SliceOfN(rapid.Byte(), n, n).Draw(rt, "data")

		f := kissframe.Frame{Channel: channel, Command: kissframe.CmdDataFrame, Data: data}
		encoded := kissframe.Encode(f)

		var d kissframe.Decoder
		var got kissframe.Frame
		for _, b := range encoded {
			if f2, ok, err := d.Push(b); ok {
				require.NoError(rt, err)
				got = f2
			}
		}
		assert.Equal(rt, f.Channel, got.Channel)
		assert.Equal(rt, f.Command, got.Command)
		assert.Equal(rt, f.Data, got.Data)
	})
}
