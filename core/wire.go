package core

import (
	"encoding/binary"
	"fmt"
)

const (
	// ProbeSize is the length of a probe datagram: sequence and send time.
	ProbeSize = 16

	// EchoSize is the length of an echo datagram: the probe plus the responder receive time.
	EchoSize = 24
)

// Probe is a timestamped datagram sent to the responder.
type Probe struct {
	Seq    uint64
	SentAt uint64
}

// Echo is the decoded reply of the responder.
type Echo struct {
	Seq      uint64
	SentAt   uint64
	RemoteAt uint64
}

// AppendProbe appends the wire form of p to b.
func AppendProbe(b []byte, p Probe) []byte {
	b = binary.BigEndian.AppendUint64(b, p.Seq)
	return binary.BigEndian.AppendUint64(b, p.SentAt)
}

// ParseEcho decodes an echo datagram. Any bytes past EchoSize are ignored.
func ParseEcho(b []byte) (Echo, error) {
	if len(b) < EchoSize {
		return Echo{}, fmt.Errorf("%w: %d bytes received of min %d", ErrShortDatagram, len(b), EchoSize)
	}

	return Echo{
		Seq:      binary.BigEndian.Uint64(b[0:8]),
		SentAt:   binary.BigEndian.Uint64(b[8:16]),
		RemoteAt: binary.BigEndian.Uint64(b[16:24]),
	}, nil
}

// StampEcho turns a received probe into its echo by writing now into bytes [16:24).
// buf must have a capacity of at least EchoSize; n is the number of bytes received.
func StampEcho(buf []byte, n int, now uint64) ([]byte, error) {
	if n < ProbeSize {
		return nil, fmt.Errorf("%w: %d bytes received of min %d", ErrShortDatagram, n, ProbeSize)
	}
	if cap(buf) < EchoSize {
		return nil, fmt.Errorf("echo buffer capacity %d below %d", cap(buf), EchoSize)
	}

	echo := buf[:EchoSize]
	binary.BigEndian.PutUint64(echo[ProbeSize:EchoSize], now)
	return echo, nil
}
