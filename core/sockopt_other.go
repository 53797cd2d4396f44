//go:build !linux

package core

import "syscall"

func socketControl(settings *Settings) func(network, address string, c syscall.RawConn) error {
	return nil
}
