package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// Transport sends probes to a single peer and receives its replies.
type Transport interface {
	// Send writes one datagram to the peer.
	Send(b []byte) error

	// Receive reads one datagram into b, waiting at most timeout.
	// It returns ErrTimeout when nothing arrived in time.
	Receive(b []byte, timeout time.Duration) (int, error)

	Close() error
}

// UDPTransport is a Transport over an unconnected UDP socket. Datagrams coming
// from any other address than the peer are dropped.
type UDPTransport struct {
	conn net.PacketConn
	peer *net.UDPAddr
}

// DialUDP resolves address and port, binds the local source port and applies
// the socket options of settings.
func DialUDP(ctx context.Context, address string, settings *Settings) (*UDPTransport, error) {
	peer, err := net.ResolveUDPAddr("udp", net.JoinHostPort(address, strconv.Itoa(settings.Port)))
	if err != nil {
		return nil, fmt.Errorf("error while resolving address %s: %w", address, err)
	}

	conn, err := listenUDP(ctx, udpNetwork(peer.IP), settings.SourcePort, settings)
	if err != nil {
		return nil, err
	}

	return &UDPTransport{conn: conn, peer: peer}, nil
}

// Peer returns the resolved address probes are sent to.
func (t *UDPTransport) Peer() *net.UDPAddr {
	return t.peer
}

// LocalAddr returns the bound local address.
func (t *UDPTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

func (t *UDPTransport) Send(b []byte) error {
	_, err := t.conn.WriteTo(b, t.peer)
	return err
}

func (t *UDPTransport) Receive(b []byte, timeout time.Duration) (int, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, fmt.Errorf("could not set read deadline: %w", err)
	}

	n, from, err := t.conn.ReadFrom(b)
	if err != nil {
		if isTimeout(err) {
			return 0, ErrTimeout
		}
		return 0, err
	}

	if udp, ok := from.(*net.UDPAddr); ok && !sameEndpoint(udp, t.peer) {
		return 0, nil
	}
	return n, nil
}

func (t *UDPTransport) Close() error {
	return t.conn.Close()
}

// listenUDP binds a UDP socket on port and applies TTL, TOS and priority settings.
func listenUDP(ctx context.Context, network string, port int, settings *Settings) (net.PacketConn, error) {
	lc := net.ListenConfig{Control: socketControl(settings)}

	conn, err := lc.ListenPacket(ctx, network, net.JoinHostPort("", strconv.Itoa(port)))
	if err != nil {
		return nil, &TransportError{Op: "binding", Err: err}
	}

	if err := setIPOptions(conn, network, settings); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func setIPOptions(conn net.PacketConn, network string, settings *Settings) error {
	if network == "udp4" {
		pc := ipv4.NewPacketConn(conn)
		if settings.TTL > 0 {
			if err := pc.SetTTL(settings.TTL); err != nil {
				return fmt.Errorf("could not set TTL in connection: %w", err)
			}
		}
		if settings.TOS > 0 {
			if err := pc.SetTOS(settings.TOS); err != nil {
				return fmt.Errorf("could not set TOS in connection: %w", err)
			}
		}
		return nil
	}

	pc := ipv6.NewPacketConn(conn)
	if settings.TTL > 0 {
		if err := pc.SetHopLimit(settings.TTL); err != nil {
			return fmt.Errorf("could not set hop limit in connection: %w", err)
		}
	}
	if settings.TOS > 0 {
		if err := pc.SetTrafficClass(settings.TOS); err != nil {
			return fmt.Errorf("could not set traffic class in connection: %w", err)
		}
	}
	return nil
}

func isTimeout(err error) bool {
	var neterr net.Error
	return errors.As(err, &neterr) && neterr.Timeout()
}

func sameEndpoint(a, b *net.UDPAddr) bool {
	return a.Port == b.Port && a.IP.Equal(b.IP)
}
