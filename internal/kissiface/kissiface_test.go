package kissiface_test

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kb9xyz/packetnode/internal/kissframe"
	"github.com/kb9xyz/packetnode/internal/kissiface"
)

func TestClientDispatchesDataAndCommandFrames(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	var gotData, gotCmd kissframe.Frame
	dataCh := make(chan struct{}, 1)
	cmdCh := make(chan struct{}, 1)

	c := kissiface.NewClient(server, func(f kissframe.Frame) {
		gotData = f
		dataCh <- struct{}{}
	}, func(f kissframe.Frame) {
		gotCmd = f
		cmdCh <- struct{}{}
	})
	go c.Serve()

	_, err := client.Write(kissframe.Encode(kissframe.Frame{Command: kissframe.CmdDataFrame, Data: []byte("hello")}))
	require.NoError(t, err)

	select {
	case <-dataCh:
		assert.Equal(t, []byte("hello"), gotData.Data)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for data frame")
	}

	_, err = client.Write(kissframe.Encode(kissframe.Frame{Command: kissframe.CmdTXDelay, Data: []byte{30}}))
	require.NoError(t, err)

	select {
	case <-cmdCh:
		assert.Equal(t, kissframe.CmdTXDelay, gotCmd.Command)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for command frame")
	}
}

func TestServerAcceptsAndBroadcasts(t *testing.T) {
	srv, err := kissiface.Listen("127.0.0.1:0", nil, nil)
	require.NoError(t, err)
	defer srv.Close()
	go srv.Serve()

	addr := srv.Addr()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(20 * time.Millisecond)
	srv.Broadcast(0, []byte("hi"))

	buf := make([]byte, 64)
	conn.SetReadDeadline(time.Now().Add(time.Second))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "hi")
}

func TestAGWServerAcksVersionInquiry(t *testing.T) {
	srv, err := kissiface.ListenAGWPE("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Close()
	go srv.Serve()

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	req := kissiface.AGWPEHeader{DataKind: 'R'}
	require.NoError(t, binary.Write(conn, binary.LittleEndian, &req))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var resp kissiface.AGWPEHeader
	require.NoError(t, binary.Read(conn, binary.LittleEndian, &resp))
	assert.Equal(t, byte('R'), resp.DataKind)
	assert.Equal(t, uint32(0), resp.DataLen)
}

func TestAGWServerIgnoresUnknownDataKind(t *testing.T) {
	srv, err := kissiface.ListenAGWPE("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Close()
	go srv.Serve()

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	connectReq := kissiface.AGWPEHeader{DataKind: 'c', DataLen: 3}
	require.NoError(t, binary.Write(conn, binary.LittleEndian, &connectReq))
	_, err = conn.Write([]byte("abc"))
	require.NoError(t, err)

	// Follow up with a version inquiry: if the unknown frame's payload
	// weren't drained correctly, this reply would desync and fail.
	req := kissiface.AGWPEHeader{DataKind: 'R'}
	require.NoError(t, binary.Write(conn, binary.LittleEndian, &req))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var resp kissiface.AGWPEHeader
	require.NoError(t, binary.Read(conn, binary.LittleEndian, &resp))
	assert.Equal(t, byte('R'), resp.DataKind)
}
