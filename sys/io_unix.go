//go:build linux || darwin

package sys

import (
	"syscall"

	"github.com/moqsien/gkmux/utils"
)

const (
	EAGAIN     = syscall.EAGAIN
	ECONNRESET = syscall.ECONNRESET
)

func Read(h Handle, p []byte) (int, error) {
	return syscall.Read(int(h), p)
}

func Write(h Handle, p []byte) (int, error) {
	return syscall.Write(int(h), p)
}

func CloseFd(h Handle) error {
	return syscall.Close(int(h))
}

// Accept returns the next connection on a listening socket in
// non-blocking mode, with keep-alive armed when secs > 0.
func Accept(h Handle, secs int) (Handle, syscall.Sockaddr, error) {
	nfd, sa, err := syscall.Accept(int(h))
	if err != nil {
		return InvalidHandle, nil, err
	}
	if err = syscall.SetNonblock(nfd, true); err != nil {
		syscall.Close(nfd)
		return InvalidHandle, nil, utils.SysError("set_nonblock", err)
	}
	if secs > 0 {
		if err = SetKeepAlive(Handle(nfd), secs); err != nil {
			syscall.Close(nfd)
			return InvalidHandle, nil, err
		}
	}
	return Handle(nfd), sa, nil
}

func SetKeepAlive(h Handle, secs int) (err error) {
	fd := int(h)
	if err = syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_KEEPALIVE, 1); err != nil {
		return utils.SysError("setsockopt", err)
	}
	if err = syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, tcpKeepIntvl, secs); err != nil {
		return utils.SysError("setsockopt", err)
	}
	err = syscall.SetsockoptInt(fd, syscall.IPPROTO_TCP, tcpKeepIdle, secs)
	return utils.SysError("setsockopt", err)
}
