package core

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startResponder runs a responder on a loopback ephemeral port with a fixed clock
func startResponder(t *testing.T, now uint64) (*Responder, context.CancelFunc, chan error) {
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)

	r := newResponder(conn, &manualClock{now: now}, NewLogger(uint32(log.ErrorLevel)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.Run(ctx)
	}()
	return r, cancel, done
}

// TestResponderEchoesProbe verifies that a probe comes back with the responder receive time appended
func TestResponderEchoesProbe(t *testing.T) {
	r, cancel, done := startResponder(t, 777)
	defer cancel()

	client, err := net.Dial("udp4", r.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	probe := AppendProbe(nil, Probe{Seq: 9, SentAt: 123})
	_, err = client.Write(append(probe, 0xaa, 0xbb))
	require.NoError(t, err)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 64)
	n, err := client.Read(buf)
	require.NoError(t, err)
	require.Equal(t, EchoSize, n)

	assert.True(t, bytes.Equal(probe, buf[:ProbeSize]))
	e, err := ParseEcho(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, Echo{Seq: 9, SentAt: 123, RemoteAt: 777}, e)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Error("responder did not stop in time")
	}
	assert.Equal(t, uint64(1), r.Echoed())
}

// TestResponderIgnoresShortDatagram verifies that datagrams shorter than a probe get no answer
func TestResponderIgnoresShortDatagram(t *testing.T) {
	r, cancel, _ := startResponder(t, 1)
	defer cancel()

	client, err := net.Dial("udp4", r.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write(make([]byte, ProbeSize-1))
	require.NoError(t, err)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, err = client.Read(make([]byte, 64))
	assert.True(t, isTimeout(err))
	assert.Equal(t, uint64(1), r.Ignored())
}

// writeOnlyConn accepts every write and counts it
type writeOnlyConn struct {
	net.PacketConn
	writes int
}

func (c *writeOnlyConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	c.writes++
	return len(b), nil
}

// TestResponderForgetsPeers verifies that the set of known senders stays bounded
func TestResponderForgetsPeers(t *testing.T) {
	conn := &writeOnlyConn{}
	r := newResponder(conn, &manualClock{now: 5}, NewLogger(uint32(log.ErrorLevel)))

	buf := make([]byte, EchoSize)
	for i := 0; i <= maxPeers; i++ {
		AppendProbe(buf[:0], Probe{Seq: uint64(i), SentAt: 1})
		from := &net.UDPAddr{IP: net.IPv4(10, byte(i>>16), byte(i>>8), byte(i)), Port: 4000}
		require.NoError(t, r.answer(buf, ProbeSize, from))
		assert.LessOrEqual(t, len(r.peers), maxPeers)
	}

	assert.Len(t, r.peers, 1)
	assert.Equal(t, maxPeers+1, conn.writes)
	assert.Equal(t, uint64(maxPeers+1), r.Echoed())
}

// TestUDPTransportRoundTrip verifies that the prober transport reaches a responder and times out when idle
func TestUDPTransportRoundTrip(t *testing.T) {
	r, cancel, _ := startResponder(t, 5)
	defer cancel()

	settings := DefaultSettings()
	settings.Port = r.Addr().(*net.UDPAddr).Port
	settings.TTL = 32

	tr, err := DialUDP(context.Background(), "127.0.0.1", settings)
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, tr.Send(AppendProbe(nil, Probe{Seq: 1, SentAt: 2})))

	buf := make([]byte, recvBufferSize)
	n, err := tr.Receive(buf, 2*time.Second)
	require.NoError(t, err)

	e, err := ParseEcho(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, Echo{Seq: 1, SentAt: 2, RemoteAt: 5}, e)

	_, err = tr.Receive(buf, 50*time.Millisecond)
	assert.Equal(t, ErrTimeout, err)
}

// TestUDPTransportFiltersStrangers verifies that datagrams from other hosts than the peer are dropped
func TestUDPTransportFiltersStrangers(t *testing.T) {
	settings := DefaultSettings()
	settings.Port = 9

	tr, err := DialUDP(context.Background(), "127.0.0.1", settings)
	require.NoError(t, err)
	defer tr.Close()

	local := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: tr.LocalAddr().(*net.UDPAddr).Port}
	stranger, err := net.Dial("udp4", local.String())
	require.NoError(t, err)
	defer stranger.Close()

	_, err = stranger.Write(make([]byte, EchoSize))
	require.NoError(t, err)

	n, err := tr.Receive(make([]byte, recvBufferSize), 2*time.Second)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

// TestSessionLoopback runs a short measurement against a real responder
func TestSessionLoopback(t *testing.T) {
	if testing.Short() {
		t.Skip("runs for the full grace period")
	}

	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	r := newResponder(conn, SystemClock(), NewLogger(uint32(log.ErrorLevel)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	settings := DefaultSettings()
	settings.Port = conn.LocalAddr().(*net.UDPAddr).Port
	settings.Interval = 50
	settings.Duration = 1

	var out bytes.Buffer
	sink := NewCSVSink(&out)

	s, err := NewSession(ctx, "127.0.0.1", settings, sink)
	require.NoError(t, err)
	require.NoError(t, s.Run(ctx))

	sent := s.Stats.GetTotalSent()
	assert.LessOrEqual(t, sent, uint32(21))
	assert.Greater(t, sent, uint32(0))
	assert.Equal(t, sent, s.Stats.GetTotalRecv()+s.Stats.GetTotalLost())

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	assert.Len(t, lines, int(sent)+1)
	assert.Equal(t, ReportHeader, string(lines[0]))
}
