package conn

import (
	"net"

	"github.com/moqsien/processes/logger"
	"github.com/panjf2000/gnet/v2/pkg/buffer/elastic"

	"github.com/moqsien/gkmux/iface"
	"github.com/moqsien/gkmux/sys"
	"github.com/moqsien/gkmux/utils/errs"
)

const ReadBufferSize = 64 * 1024

type EventHandler interface {
	OnOpen(*Conn) (data []byte, err error)
	OnTrack(*Conn) error
	OnClose(*Conn, error) error
}

// Conn couples one socket with the multiplexer that watches it. Write
// readiness from the mux is optimistic, so writes go through an elastic
// out-buffer: would-block data is parked there and flushed on Write
// events until empty, at which point write interest is dropped again.
type Conn struct {
	Fd         sys.Handle
	Mux        iface.IMux
	AddrLocal  net.Addr
	AddrRemote net.Addr
	OutBuffer  *elastic.Buffer
	Buffer     []byte
	Ctx        interface{}
	Opened     bool
	Handler    EventHandler
}

func NewConn(fd sys.Handle, mux iface.IMux, localAddr, remoteAddr net.Addr, h EventHandler) (c *Conn) {
	c = &Conn{
		Fd:         fd,
		Mux:        mux,
		AddrLocal:  localAddr,
		AddrRemote: remoteAddr,
		Handler:    h,
	}
	c.OutBuffer, _ = elastic.New(1024)
	return
}

// Open registers the connection for read events and runs the OnOpen
// hook; data returned by the hook is written back immediately.
func (that *Conn) Open() error {
	if !that.Mux.Add(that.Fd, iface.EventRead, that) {
		return errs.ErrAcceptSocket
	}
	that.Opened = true
	data, err := that.Handler.OnOpen(that)
	if err != nil {
		return err
	}
	if data != nil {
		if _, err = that.write(data); err != nil {
			return err
		}
	}
	return nil
}

// HandleEvents dispatches one delivered event mask to the connection.
func (that *Conn) HandleEvents(events uint32) error {
	if events&(iface.EventError|iface.EventHangup) != 0 {
		return that.Close(sys.ECONNRESET)
	}
	if events&iface.EventWrite != 0 {
		if err := that.WriteToFd(); err != nil {
			return err
		}
	}
	if events&iface.EventRead != 0 {
		if err := that.ReadFromFd(); err != nil {
			return err
		}
	}
	return nil
}

func (that *Conn) Close(err ...error) (rerr error) {
	if !that.Opened {
		return
	}
	that.Opened = false

	for !that.OutBuffer.IsEmpty() {
		iov := that.OutBuffer.Peek(-1)
		n, e := sys.Write(that.Fd, iov[0])
		if e != nil {
			logger.Warningf("closeConn: error occurs when sending data back to peer, %v", e)
			break
		}
		that.OutBuffer.Discard(n)
	}

	that.Mux.Remove(that.Fd)
	if e := sys.CloseFd(that.Fd); e != nil {
		rerr = e
	}

	var cause error
	if len(err) > 0 {
		cause = err[0]
	}
	if that.Handler.OnClose(that, cause) != nil {
		rerr = errs.ErrLoopShutdown
	}

	that.Ctx = nil
	that.Buffer = nil
	that.AddrLocal = nil
	that.AddrRemote = nil
	that.OutBuffer.Release()
	return
}
