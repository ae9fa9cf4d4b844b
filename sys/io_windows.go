//go:build windows

package sys

import (
	"golang.org/x/sys/windows"
)

const (
	EAGAIN     = windows.WSAEWOULDBLOCK
	ECONNRESET = windows.WSAECONNRESET
)

// Read and Write issue synchronous WSA calls with a nil overlapped, so
// they behave like plain recv/send on the socket.
func Read(h Handle, p []byte) (int, error) {
	var (
		buf   windows.WSABuf
		n     uint32
		flags uint32
	)
	buf.Len = uint32(len(p))
	if len(p) > 0 {
		buf.Buf = &p[0]
	}
	err := windows.WSARecv(windows.Handle(h), &buf, 1, &n, &flags, nil, nil)
	return int(n), err
}

func Write(h Handle, p []byte) (int, error) {
	var (
		buf windows.WSABuf
		n   uint32
	)
	buf.Len = uint32(len(p))
	if len(p) > 0 {
		buf.Buf = &p[0]
	}
	err := windows.WSASend(windows.Handle(h), &buf, 1, &n, 0, nil, nil)
	return int(n), err
}

func CloseFd(h Handle) error {
	return windows.Closesocket(windows.Handle(h))
}

func SetKeepAlive(h Handle, secs int) error {
	return windows.SetsockoptInt(windows.Handle(h), windows.SOL_SOCKET, windows.SO_KEEPALIVE, 1)
}
