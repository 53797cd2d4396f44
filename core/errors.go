package core

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocolViolation is returned when an echo references a probe that was never sent.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrTimeout is returned by a Transport when nothing arrived before the receive deadline.
	ErrTimeout = errors.New("receive timed out")

	// ErrShortDatagram is returned when a datagram is smaller than the layout it should carry.
	ErrShortDatagram = errors.New("datagram too short")
)

// TransportError is a failure of the underlying datagram socket.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("error while %s: %s", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ReportError is a failure to emit a record to the report sink.
type ReportError struct {
	Err error
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("could not write report: %s", e.Err)
}

func (e *ReportError) Unwrap() error {
	return e.Err
}
