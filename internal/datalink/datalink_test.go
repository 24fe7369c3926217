package datalink_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb9xyz/packetnode/internal/ax25"
	"github.com/kb9xyz/packetnode/internal/datalink"
)

func mustAddr(t *testing.T, s string) ax25.Address {
	t.Helper()
	a, err := ax25.ParseAddress(s)
	require.NoError(t, err)
	return a
}

func newTestSession(t *testing.T) (*datalink.Session, *[]*ax25.Packet) {
	t.Helper()
	own, peer := mustAddr(t, "N0CALL-1"), mustAddr(t, "N0CALL-2")
	var sent []*ax25.Packet
	s := datalink.NewSession(own, peer, datalink.Config{Retry: 3, FrackSec: 3 * time.Second}, datalink.Hooks{
		Send: func(p *ax25.Packet) { sent = append(sent, p) },
	})
	return s, &sent
}

func TestConnectHandshake(t *testing.T) {
	s, sent := newTestSession(t)
	assert.Equal(t, datalink.StateDisconnected, s.State())

	s.Connect()
	assert.Equal(t, datalink.StateAwaitingConnection, s.State())
	require.Len(t, *sent, 1)
	assert.Equal(t, ax25.FrameSABM, (*sent)[0].Type)

	ua := ax25.NewUA(s.Peer, s.Own, true)
	s.HandleFrame(ua)
	assert.Equal(t, datalink.StateConnected, s.State())
}

func TestInboundSABMAnswersUA(t *testing.T) {
	s, sent := newTestSession(t)
	sabm := ax25.NewSABM(s.Peer, s.Own, true)
	s.HandleFrame(sabm)

	assert.Equal(t, datalink.StateConnected, s.State())
	require.Len(t, *sent, 1)
	assert.Equal(t, ax25.FrameUA, (*sent)[0].Type)
}

func TestDataTransferWindow(t *testing.T) {
	s, sent := newTestSession(t)
	s.HandleFrame(ax25.NewSABM(s.Peer, s.Own, true))
	*sent = nil

	s.SendData(0xF0, []byte("hello"))
	require.Len(t, *sent, 1)
	assert.Equal(t, ax25.FrameI, (*sent)[0].Type)
	assert.Equal(t, uint8(0), (*sent)[0].NS)

	// Peer acknowledges with RR N(R)=1.
	s.HandleFrame(ax25.NewRR(s.Peer, s.Own, ax25.CRResponse, false, 1))
	assert.Equal(t, datalink.StateConnected, s.State())
}

func TestInboundIFrameDelivered(t *testing.T) {
	own, peer := mustAddr(t, "N0CALL-1"), mustAddr(t, "N0CALL-2")
	var sent []*ax25.Packet
	var delivered []byte
	s := datalink.NewSession(own, peer, datalink.Config{Retry: 3, FrackSec: 3 * time.Second}, datalink.Hooks{
		Send:    func(p *ax25.Packet) { sent = append(sent, p) },
		Deliver: func(pid byte, data []byte) { delivered = data },
	})
	s.HandleFrame(ax25.NewSABM(s.Peer, s.Own, true))
	sent = nil

	i := ax25.NewI(s.Peer, s.Own, true, 0, 0, 0xF0, []byte("payload"))
	s.HandleFrame(i)

	assert.Equal(t, []byte("payload"), delivered)
	require.Len(t, sent, 1)
	assert.Equal(t, ax25.FrameRR, sent[0].Type)
	assert.Equal(t, uint8(1), sent[0].NR)
}

func TestRejTriggersRetransmission(t *testing.T) {
	s, sent := newTestSession(t)
	s.HandleFrame(ax25.NewSABM(s.Peer, s.Own, true))
	*sent = nil

	s.SendData(0xF0, []byte("one"))
	s.SendData(0xF0, []byte("two"))
	require.Len(t, *sent, 2)
	*sent = nil

	s.HandleFrame(ax25.NewREJ(s.Peer, s.Own, ax25.CRResponse, false, 0))

	require.Len(t, *sent, 2)
	assert.Equal(t, ax25.FrameI, (*sent)[0].Type)
	assert.Equal(t, uint8(0), (*sent)[0].NS)
	assert.Equal(t, uint8(1), (*sent)[1].NS)
}

func TestDisconnect(t *testing.T) {
	s, sent := newTestSession(t)
	s.HandleFrame(ax25.NewSABM(s.Peer, s.Own, true))
	*sent = nil

	s.Disconnect()
	assert.Equal(t, datalink.StateAwaitingRelease, s.State())
	require.Len(t, *sent, 1)
	assert.Equal(t, ax25.FrameDISC, (*sent)[0].Type)

	s.HandleFrame(ax25.NewUA(s.Peer, s.Own, true))
	assert.Equal(t, datalink.StateDisconnected, s.State())
}

func TestT1RetryExhaustionDisconnects(t *testing.T) {
	s, _ := newTestSession(t)
	s.Connect()
	assert.Equal(t, datalink.StateAwaitingConnection, s.State())

	far := time.Now().Add(time.Hour)
	for i := 0; i < 3; i++ {
		s.PollTimers(far)
		far = far.Add(time.Hour)
	}
	assert.Equal(t, datalink.StateDisconnected, s.State())
}

func TestManagerRoutesInboundConnectionRequest(t *testing.T) {
	own := mustAddr(t, "N0CALL-1")
	peer := mustAddr(t, "N0CALL-2")

	var sent []*ax25.Packet
	m := datalink.NewManager(datalink.Config{Retry: 3, FrackSec: 3 * time.Second}, func(own, peer ax25.Address) datalink.Hooks {
		return datalink.Hooks{Send: func(p *ax25.Packet) { sent = append(sent, p) }}
	})
	m.RegisterCallsign(own.String())

	sabm := ax25.NewSABM(own, peer, true)
	m.HandleReceived(sabm)

	s := m.Session(own, peer)
	require.NotNil(t, s)
	assert.Equal(t, datalink.StateConnected, s.State())
	require.Len(t, sent, 1)
	assert.Equal(t, ax25.FrameUA, sent[0].Type)
}

func TestManagerIgnoresUnregisteredConnectionRequest(t *testing.T) {
	own := mustAddr(t, "N0CALL-1")
	peer := mustAddr(t, "N0CALL-2")
	m := datalink.NewManager(datalink.Config{}, func(own, peer ax25.Address) datalink.Hooks {
		return datalink.Hooks{}
	})
	m.HandleReceived(ax25.NewSABM(own, peer, true))
	assert.Nil(t, m.Session(own, peer))
}
