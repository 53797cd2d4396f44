package core

import (
	"errors"
	"fmt"
)

const (
	// DefaultPort is the UDP port the responder listens on unless told otherwise.
	DefaultPort = 50057

	// maxInterval is the largest accepted probe interval, in milliseconds.
	maxInterval = 60 * 60 * 1000
)

// Settings contains all configurable properties of a measurement run.
type Settings struct {
	// Port is the remote port probes are sent to.
	Port int

	// SourcePort is the local port to bind. Zero lets the OS choose for the
	// prober; the responder falls back to DefaultPort.
	SourcePort int

	// Interval is the time in milliseconds between two probes.
	Interval int

	// Duration is the time in seconds during which probes are sent.
	Duration int

	// Output is the path of the report file. Empty means standard output.
	Output string

	// TTL is the IP time to live (or IPv6 hop limit) of sent datagrams. Zero keeps the OS default.
	TTL int

	// TOS is the IPv4 type of service (or IPv6 traffic class) byte of sent datagrams.
	TOS int

	// RealTime requests elevated socket priority from the OS where supported.
	RealTime bool

	// StatsWindow is the number of recent echoes used for the delay mean and deviation.
	StatsWindow int

	// LoggingLevel is the logrus level, from 0 (panic) to 6 (trace).
	LoggingLevel uint32
}

// DefaultSettings returns the default settings for a run, change as you wish.
func DefaultSettings() *Settings {
	return &Settings{
		Port:         DefaultPort,
		SourcePort:   0,
		Interval:     1000,
		Duration:     10,
		Output:       "",
		TTL:          0,
		TOS:          0,
		RealTime:     false,
		StatsWindow:  1000,
		LoggingLevel: 2,
	}
}

// IntervalMicros returns the probe interval in microseconds.
func (s *Settings) IntervalMicros() uint64 {
	return uint64(s.Interval) * 1000
}

// DurationMicros returns the sending duration in microseconds.
func (s *Settings) DurationMicros() uint64 {
	return uint64(s.Duration) * 1000000
}

func (s *Settings) validate() error {
	if s.Port <= 0 || s.Port > 0xffff {
		return fmt.Errorf("invalid port %d", s.Port)
	}
	if s.SourcePort < 0 || s.SourcePort > 0xffff {
		return fmt.Errorf("invalid source port %d", s.SourcePort)
	}
	if s.Interval <= 0 {
		return errors.New("interval must be positive")
	}
	if s.Interval > maxInterval {
		return fmt.Errorf("interval must be at most %d ms", maxInterval)
	}
	if s.Duration <= 0 {
		return errors.New("duration must be positive")
	}
	if s.TTL < 0 || s.TTL > 255 {
		return fmt.Errorf("invalid ttl %d", s.TTL)
	}
	if s.TOS < 0 || s.TOS > 255 {
		return fmt.Errorf("invalid tos %d", s.TOS)
	}
	if s.StatsWindow <= 0 {
		return errors.New("stats window must be positive")
	}
	return nil
}
