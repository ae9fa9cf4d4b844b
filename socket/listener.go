package socket

import (
	"errors"
	"net"
	"syscall"

	"github.com/moqsien/gkmux/sys"
)

type IListener interface {
	net.Listener
	GetFd() sys.Handle
}

type GkListener struct {
	ln   net.Listener
	fd   sys.Handle
	addr net.Addr
}

func (that *GkListener) Accept() (net.Conn, error) {
	return that.ln.Accept()
}

func (that *GkListener) Close() (err error) {
	err = that.ln.Close()
	that.fd = sys.InvalidHandle
	that.addr = nil
	return
}

func (that *GkListener) Addr() net.Addr {
	return that.addr
}

func (that *GkListener) GetFd() sys.Handle {
	return that.fd
}

// ResolveFd digs the raw descriptor out of a listener without
// duplicating it, so the net package keeps ownership of the socket.
func ResolveFd(ln net.Listener) (h sys.Handle, err error) {
	sc, ok := ln.(syscall.Conn)
	if !ok {
		return sys.InvalidHandle, errors.New("unsupported Listener")
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return sys.InvalidHandle, err
	}
	err = rc.Control(func(fd uintptr) {
		h = sys.Handle(fd)
	})
	return
}

func Listen(network, address string) (gl IListener, err error) {
	l, err := net.Listen(network, address)
	if err != nil {
		return nil, err
	}
	fd, err := ResolveFd(l)
	if err != nil {
		l.Close()
		return nil, err
	}
	gl = &GkListener{
		ln:   l,
		fd:   fd,
		addr: l.Addr(),
	}
	return
}

func AdaptListener(l net.Listener) (gl IListener, err error) {
	fd, err := ResolveFd(l)
	if err != nil {
		return nil, err
	}
	gl = &GkListener{
		ln:   l,
		fd:   fd,
		addr: l.Addr(),
	}
	return
}
