package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// maxPeers bounds the set of senders remembered for logging.
const maxPeers = 4096

// Responder echoes every probe back to its sender with its own receive time.
// It keeps no state about probes.
type Responder struct {
	conn   net.PacketConn
	clock  Clock
	logger *log.Entry

	// peers remembers which senders have been logged already.
	peers map[string]struct{}

	echoed  uint64
	ignored uint64
}

// NewResponder binds the responder socket on settings.SourcePort, or DefaultPort when unset.
func NewResponder(ctx context.Context, settings *Settings) (*Responder, error) {
	logger := NewLogger(settings.LoggingLevel)

	port := settings.SourcePort
	if port == 0 {
		port = DefaultPort
	}

	conn, err := listenUDP(ctx, "udp", port, settings)
	if err != nil {
		return nil, err
	}

	return newResponder(conn, SystemClock(), logger), nil
}

func newResponder(conn net.PacketConn, clock Clock, logger *log.Logger) *Responder {
	return &Responder{
		conn:   conn,
		clock:  clock,
		logger: logger.WithFields(log.Fields{"run": uuid.New().String(), "role": "responder"}),
		peers:  make(map[string]struct{}),
	}
}

// Addr returns the address the responder listens on.
func (r *Responder) Addr() net.Addr {
	return r.conn.LocalAddr()
}

// Echoed returns the number of echoes sent.
func (r *Responder) Echoed() uint64 {
	return atomic.LoadUint64(&r.echoed)
}

// Ignored returns the number of datagrams too short to be a probe.
func (r *Responder) Ignored() uint64 {
	return atomic.LoadUint64(&r.ignored)
}

// Run answers probes until ctx is cancelled or the socket fails.
func (r *Responder) Run(ctx context.Context) error {
	defer r.conn.Close()

	r.logger.Infof("Waiting for probes on %s", r.conn.LocalAddr())

	buf := make([]byte, recvBufferSize)
	for {
		if ctx.Err() != nil {
			r.logger.Infof("Responder stopped after %d echoes", r.Echoed())
			return nil
		}

		if err := r.conn.SetReadDeadline(time.Now().Add(maxWait)); err != nil {
			return &TransportError{Op: "setting read deadline", Err: err}
		}

		n, from, err := r.conn.ReadFrom(buf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return &TransportError{Op: "receiving probe", Err: err}
		}

		if err := r.answer(buf, n, from); err != nil {
			return err
		}
	}
}

func (r *Responder) answer(buf []byte, n int, from net.Addr) error {
	echo, err := StampEcho(buf, n, r.clock.Now())
	if err != nil {
		if errors.Is(err, ErrShortDatagram) {
			r.logger.Debugf("Ignoring datagram from %s: %s", from, err)
			atomic.AddUint64(&r.ignored, 1)
			return nil
		}
		return err
	}

	if _, ok := r.peers[from.String()]; !ok {
		if len(r.peers) >= maxPeers {
			r.logger.Debugf("Forgetting %d known peers", len(r.peers))
			clear(r.peers)
		}
		r.peers[from.String()] = struct{}{}
		r.logger.Infof("New peer %s", from)
	}

	if _, err := r.conn.WriteTo(echo, from); err != nil {
		return &TransportError{Op: "sending echo", Err: fmt.Errorf("to %s: %w", from, err)}
	}
	atomic.AddUint64(&r.echoed, 1)
	return nil
}
