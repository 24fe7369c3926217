package xmit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb9xyz/packetnode/internal/ax25"
	"github.com/kb9xyz/packetnode/internal/queue"
	"github.com/kb9xyz/packetnode/internal/xmit"
)

func mustAddr(t *testing.T, s string) ax25.Address {
	t.Helper()
	a, err := ax25.ParseAddress(s)
	require.NoError(t, err)
	return a
}

type fakePTT struct{ events []bool }

func (f *fakePTT) Set(on bool) { f.events = append(f.events, on) }

type fakeModulator struct {
	idleOctets []int
	frames     [][]byte
	flushed    bool
}

func (f *fakeModulator) SendIdleFlags(octets int) { f.idleOctets = append(f.idleOctets, octets) }
func (f *fakeModulator) SendFrame(encoded []byte) int {
	f.frames = append(f.frames, encoded)
	return len(encoded) * 8
}
func (f *fakeModulator) Flush() { f.flushed = true }

func TestRunKeysAndUnkeysPTT(t *testing.T) {
	dest, src := mustAddr(t, "N0CALL"), mustAddr(t, "N0CALL-1")
	p := ax25.NewUA(dest, src, true)

	ptt := &fakePTT{}
	mod := &fakeModulator{}
	q := queue.New()

	c := xmit.NewCycle(xmit.Config{Baud: 1200, TXDelay: time.Millisecond, TXTail: time.Millisecond}, ptt, mod, q)
	c.Run(queue.Item{Channel: 0, Packet: p})

	require.Len(t, ptt.events, 2)
	assert.True(t, ptt.events[0])
	assert.False(t, ptt.events[1])
	assert.True(t, mod.flushed)
	require.Len(t, mod.frames, 1)
}

func TestRunDrainsAlreadyQueuedFramesUpToMax(t *testing.T) {
	dest, src := mustAddr(t, "N0CALL"), mustAddr(t, "N0CALL-1")
	first := ax25.NewUA(dest, src, true)
	second := ax25.NewDM(dest, src, true)

	ptt := &fakePTT{}
	mod := &fakeModulator{}
	q := queue.New()
	q.Append(queue.PriorityLow, 0, second)

	c := xmit.NewCycle(xmit.Config{Baud: 1200, MaxPerKey: 2}, ptt, mod, q)
	c.Run(queue.Item{Channel: 0, Packet: first})

	assert.Len(t, mod.frames, 2)
	assert.True(t, q.Empty())
}

func TestRunStopsAtMaxPerKeyLeavingQueueNonEmpty(t *testing.T) {
	dest, src := mustAddr(t, "N0CALL"), mustAddr(t, "N0CALL-1")
	first := ax25.NewUA(dest, src, true)
	second := ax25.NewDM(dest, src, true)

	ptt := &fakePTT{}
	mod := &fakeModulator{}
	q := queue.New()
	q.Append(queue.PriorityLow, 0, second)

	c := xmit.NewCycle(xmit.Config{Baud: 1200, MaxPerKey: 1}, ptt, mod, q)
	c.Run(queue.Item{Channel: 0, Packet: first})

	assert.Len(t, mod.frames, 1)
	assert.False(t, q.Empty())
}
