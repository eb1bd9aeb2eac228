//go:build windows

package ipc

import (
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

// pipeSecurityDescriptor grants full control to SYSTEM and administrators
// and generic read to Everyone. The service typically runs elevated while
// its clients do not; without the read grant for Everyone an unprivileged
// client could never open the pipe.
const pipeSecurityDescriptor = "D:P(A;;GA;;;SY)(A;;GA;;;BA)(A;;GR;;;WD)"

func listenPipe(name string) (net.Listener, error) {
	return winio.ListenPipe(name, &winio.PipeConfig{
		SecurityDescriptor: pipeSecurityDescriptor,
		MessageMode:        true,
		InputBufferSize:    512,
		OutputBufferSize:   maxMessageSize,
	})
}

func dialPipe(name string) (net.Conn, error) {
	timeout := 500 * time.Millisecond
	return winio.DialPipe(name, &timeout)
}
