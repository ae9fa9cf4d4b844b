/*
Package fake provides an in-memory completion source plus scriptable
peer sockets. It reproduces the port semantics the bridged multiplexer
relies on: a successful probe always reports through a retrieved
completion, previews never consume data, and cancellations surface as
abort acknowledgments.
*/
package fake

import (
	"errors"
	"sync"
	"time"

	"github.com/moqsien/gkmux/sys"
	"github.com/moqsien/gkmux/utils/errs"
)

var ErrUnknownHandle = errors.New("unknown handle")

type Source struct {
	lock   sync.Mutex
	ch     chan sys.Completion
	done   chan struct{}
	socks  map[sys.Handle]*Socket
	nextH  sys.Handle
	closed bool
}

// Socket is one fake peer endpoint. Data written with Send stays
// peekable until Drain; Hangup simulates an orderly close by the peer.
type Socket struct {
	src     *Source
	handle  sys.Handle
	buf     []byte
	closed  bool
	breakDn error
	failDn  error
	pending *sys.PeekOp
}

func NewSource() *Source {
	return &Source{
		ch:    make(chan sys.Completion, 1024),
		done:  make(chan struct{}),
		socks: make(map[sys.Handle]*Socket),
		nextH: 100,
	}
}

func (that *Source) NewSocket() *Socket {
	that.lock.Lock()
	defer that.lock.Unlock()
	that.nextH++
	s := &Socket{src: that, handle: that.nextH}
	that.socks[s.handle] = s
	return s
}

func (that *Socket) Handle() sys.Handle {
	return that.handle
}

// Send makes data available for preview on the socket, completing a
// parked probe if one is outstanding.
func (that *Socket) Send(p []byte) {
	that.src.lock.Lock()
	defer that.src.lock.Unlock()
	that.buf = append(that.buf, p...)
	that.completeLocked()
}

// Drain consumes everything the peer has sent, like an application
// read would.
func (that *Socket) Drain() []byte {
	that.src.lock.Lock()
	defer that.src.lock.Unlock()
	p := that.buf
	that.buf = nil
	return p
}

// Hangup performs an orderly close from the peer side: probes complete
// with zero previewed bytes once buffered data is gone.
func (that *Socket) Hangup() {
	that.src.lock.Lock()
	defer that.src.lock.Unlock()
	that.closed = true
	that.completeLocked()
}

// FailNext makes the next probe completion carry err (async failure).
func (that *Socket) FailNext(err error) {
	that.src.lock.Lock()
	defer that.src.lock.Unlock()
	that.failDn = err
	that.completeLocked()
}

// Break makes every subsequent Peek fail immediately with err, before
// any completion is queued.
func (that *Socket) Break(err error) {
	that.src.lock.Lock()
	defer that.src.lock.Unlock()
	that.breakDn = err
}

func (that *Socket) completeLocked() {
	op := that.pending
	if op == nil {
		return
	}
	switch {
	case that.failDn != nil:
		that.pending = nil
		that.src.post(sys.Completion{Op: op, Err: that.failDn})
		that.failDn = nil
	case len(that.buf) > 0:
		that.pending = nil
		that.src.post(sys.Completion{Op: op, N: 1})
	case that.closed:
		that.pending = nil
		that.src.post(sys.Completion{Op: op, N: 0})
	}
}

func (that *Source) post(c sys.Completion) {
	that.ch <- c
}

// Outstanding reports the number of parked probes; it drops to zero
// once every probe has completed or been cancelled.
func (that *Source) Outstanding() int {
	that.lock.Lock()
	defer that.lock.Unlock()
	n := 0
	for _, s := range that.socks {
		if s.pending != nil {
			n++
		}
	}
	return n
}

func (that *Source) Closed() bool {
	that.lock.Lock()
	defer that.lock.Unlock()
	return that.closed
}

func (that *Source) Associate(h sys.Handle) error {
	that.lock.Lock()
	defer that.lock.Unlock()
	if _, found := that.socks[h]; !found {
		return ErrUnknownHandle
	}
	return nil
}

func (that *Source) Peek(h sys.Handle, op *sys.PeekOp) error {
	that.lock.Lock()
	defer that.lock.Unlock()
	s, found := that.socks[h]
	if !found {
		return ErrUnknownHandle
	}
	if s.breakDn != nil {
		return s.breakDn
	}
	s.pending = op
	s.completeLocked()
	return nil
}

func (that *Source) Retrieve(timeoutMs int) (c sys.Completion, ok bool) {
	if timeoutMs < 0 {
		// A closed port fails the blocked retriever.
		select {
		case c = <-that.ch:
			return c, true
		case <-that.done:
			return
		}
	}
	if timeoutMs == 0 {
		select {
		case c = <-that.ch:
			return c, true
		default:
			return
		}
	}
	timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
	defer timer.Stop()
	select {
	case c = <-that.ch:
		return c, true
	case <-that.done:
		return
	case <-timer.C:
		return
	}
}

func (that *Source) Cancel(h sys.Handle, op *sys.PeekOp) {
	that.lock.Lock()
	defer that.lock.Unlock()
	s, found := that.socks[h]
	if !found || s.pending != op {
		// Already completed; nothing to abort.
		return
	}
	s.pending = nil
	that.post(sys.Completion{Op: op, Err: errs.ErrOpAborted})
}

func (that *Source) PostSentinel(key uintptr) error {
	that.post(sys.Completion{Key: key})
	return nil
}

func (that *Source) Close() error {
	that.lock.Lock()
	defer that.lock.Unlock()
	if !that.closed {
		that.closed = true
		close(that.done)
	}
	return nil
}
