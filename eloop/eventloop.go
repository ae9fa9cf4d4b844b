//go:build linux || darwin

/*
Package eloop runs Wait cycles on a multiplexer and dispatches the
delivered events to connections. Accepted sockets are spread over the
registered loops by a balancer, gknet style: one main loop accepting,
sub loops tracking connections.
*/
package eloop

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/moqsien/processes/logger"

	"github.com/moqsien/gkmux/conn"
	"github.com/moqsien/gkmux/iface"
	"github.com/moqsien/gkmux/socket"
	"github.com/moqsien/gkmux/sys"
	"github.com/moqsien/gkmux/utils/errs"
)

type Eloop struct {
	Listener  socket.IListener
	Index     int
	Mux       iface.IMux
	Handler   conn.EventHandler
	Balancer  iface.IBalancer
	KeepAlive int
	connCount int32
	connLock  sync.Mutex
	connList  map[sys.Handle]*conn.Conn
	stopped   int32
}

func New(mux iface.IMux, handler conn.EventHandler) *Eloop {
	return &Eloop{
		Mux:      mux,
		Handler:  handler,
		connList: make(map[sys.Handle]*conn.Conn),
	}
}

func (that *Eloop) GetConnCount() int32 {
	return atomic.LoadInt32(&that.connCount)
}

func (that *Eloop) register(c *conn.Conn) error {
	c.Mux = that.Mux
	if err := c.Open(); err != nil {
		sys.CloseFd(c.Fd)
		return err
	}
	that.connLock.Lock()
	that.connList[c.Fd] = c
	that.connLock.Unlock()
	atomic.AddInt32(&that.connCount, 1)
	return nil
}

func (that *Eloop) registerTask(arg iface.TaskArg) error {
	return that.register(arg.(*conn.Conn))
}

func (that *Eloop) removeConn(fd sys.Handle) {
	that.connLock.Lock()
	if _, found := that.connList[fd]; found {
		delete(that.connList, fd)
		atomic.AddInt32(&that.connCount, -1)
	}
	that.connLock.Unlock()
}

func (that *Eloop) lookupConn(fd sys.Handle) *conn.Conn {
	that.connLock.Lock()
	c := that.connList[fd]
	that.connLock.Unlock()
	return c
}

func (that *Eloop) accept() error {
	nfd, sa, err := sys.Accept(that.Listener.GetFd(), that.KeepAlive)
	if err != nil {
		if err == sys.EAGAIN {
			return nil
		}
		logger.Warningf("accept: %v", err)
		return errs.ErrAcceptSocket
	}
	c := conn.NewConn(nfd, that.Mux, that.Listener.Addr(), socket.SockaddrToTCPAddr(sa), that.Handler)

	target := that
	if that.Balancer != nil {
		target = that.Balancer.Next(c.AddrRemote).(*Eloop)
	}
	if target == that {
		return that.register(c)
	}
	// Hand the registration to the owning loop's task queue.
	return target.Mux.AddPriorTask(target.registerTask, c)
}

// Run drives Wait until Stop is called. Connection events are
// dispatched on this goroutine; Error/Hangup close the connection.
func (that *Eloop) Run(opts *iface.Options) error {
	if opts != nil && opts.LockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}
	if opts != nil {
		that.KeepAlive = opts.ConnKeepAlive
	}
	if that.Listener != nil {
		if !that.Mux.Add(that.Listener.GetFd(), iface.EventRead, that.Listener) {
			return errs.ErrAcceptSocket
		}
	}

	events := make([]iface.Event, iface.DefaultWaitSize)
	for atomic.LoadInt32(&that.stopped) == 0 {
		n := that.Mux.Wait(events, len(events), -1)
		for i := 0; i < n; i++ {
			ev := &events[i]
			if that.Listener != nil && ev.Handle == that.Listener.GetFd() {
				if err := that.accept(); err != nil {
					logger.Warningf("error occurs in event-loop: %v", err)
				}
				continue
			}
			c := that.lookupConn(ev.Handle)
			if c == nil {
				continue
			}
			wasOpen := c.Opened
			if err := c.HandleEvents(ev.Events); err != nil {
				logger.Warningf("error occurs in event-loop: %v", err)
			}
			if wasOpen && !c.Opened {
				that.removeConn(ev.Handle)
			}
		}
	}
	return nil
}

// Stop ends the Run loop, closes every connection and the multiplexer.
func (that *Eloop) Stop() {
	if !atomic.CompareAndSwapInt32(&that.stopped, 0, 1) {
		return
	}
	that.Mux.Wakeup()

	that.connLock.Lock()
	conns := make([]*conn.Conn, 0, len(that.connList))
	for _, c := range that.connList {
		conns = append(conns, c)
	}
	that.connList = make(map[sys.Handle]*conn.Conn)
	that.connLock.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	that.Mux.Close()
}
