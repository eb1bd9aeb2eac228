//go:build !windows

package ipc

import (
	"errors"
	"net"
)

var errUnsupported = errors.New("ipc: named pipes require windows")

func listenPipe(name string) (net.Listener, error) {
	return nil, errUnsupported
}

func dialPipe(name string) (net.Conn, error) {
	return nil, errUnsupported
}
