//go:build linux

package core

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// realTimePriority is the SO_PRIORITY used when real time is requested; values
// above 6 need CAP_NET_ADMIN.
const realTimePriority = 6

func socketControl(settings *Settings) func(network, address string, c syscall.RawConn) error {
	if !settings.RealTime {
		return nil
	}

	return func(network, address string, c syscall.RawConn) error {
		var serr error
		op := "setting socket priority"
		err := c.Control(func(fd uintptr) {
			serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_PRIORITY, realTimePriority)
			if serr != nil {
				return
			}
			op = "setting address reuse"
			serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		})
		if err != nil {
			return err
		}
		if serr != nil {
			return &TransportError{Op: op, Err: serr}
		}
		return nil
	}
}
