/*
Package poll implements a readiness multiplexer for sockets with two
interchangeable backends: Mux, which emulates readiness on top of a
completion facility (an I/O completion port on windows), and Poller,
which drives the native readiness syscalls on linux and darwin.

Readability in Mux is inferred from speculative non-consuming preview
reads. Writability has no completion-side signal at all and is handed
out optimistically: every write-interested socket is reported writable
once per poll cycle, and callers deal with would-block on their own.
*/
package poll

import (
	"container/list"
	"sync"

	fifo "github.com/eapache/queue"
	"github.com/moqsien/processes/logger"

	"github.com/moqsien/gkmux/iface"
	"github.com/moqsien/gkmux/sys"
	"github.com/moqsien/gkmux/utils/errs"
)

type Mux struct {
	src        iface.ICompletionSource
	lock       sync.Mutex
	entries    map[sys.Handle]*entry
	ready      *fifo.Queue
	writeWatch *list.List
	tasks      *taskRunner
	pendingOps int
	toDoTask   bool
	closed     bool
	valid      bool
}

// NewMux wraps src into a readiness multiplexer. A nil src or a failed
// task pool yields a permanently invalid instance whose operations all
// report failure, mirroring a completion channel that could not be
// created.
func NewMux(src iface.ICompletionSource, opts *iface.Options) (m *Mux) {
	m = &Mux{
		src:        src,
		entries:    make(map[sys.Handle]*entry),
		ready:      fifo.New(),
		writeWatch: list.New(),
	}
	if src == nil {
		return
	}
	size := iface.DefaultTaskPoolSize
	if opts != nil && opts.TaskPoolSize > 0 {
		size = opts.TaskPoolSize
	}
	var err error
	if m.tasks, err = newTaskRunner(size); err != nil {
		logger.Errorf("mux task pool: %v", err)
		return
	}
	m.valid = true
	return
}

func (that *Mux) IsValid() bool {
	return that != nil && that.valid
}

func (that *Mux) Add(h sys.Handle, events uint32, data interface{}) bool {
	if !that.IsValid() {
		return false
	}
	that.lock.Lock()
	defer that.lock.Unlock()
	if that.closed {
		return false
	}
	if _, found := that.entries[h]; found {
		return false
	}
	if err := that.src.Associate(h); err != nil {
		logger.Warningf("associate handle %v: %v", h, err)
		return false
	}
	e := &entry{handle: h, events: events, data: data}
	e.op.Owner = e
	that.entries[h] = e
	if events&iface.EventWrite != 0 {
		that.addWriteWatch(e)
	}
	if events&iface.EventRead != 0 {
		that.armRead(e)
	}
	return true
}

func (that *Mux) Mod(h sys.Handle, events uint32, data interface{}) bool {
	if !that.IsValid() {
		return false
	}
	that.lock.Lock()
	defer that.lock.Unlock()
	if that.closed {
		return false
	}
	e, found := that.entries[h]
	if !found {
		return false
	}
	e.events = events
	e.data = data

	if events&iface.EventWrite != 0 {
		that.addWriteWatch(e)
	} else {
		that.removeWriteWatch(e)
	}

	if events&iface.EventRead != 0 {
		that.armRead(e)
	} else if e.readPending {
		that.src.Cancel(e.handle, &e.op)
	}
	return true
}

func (that *Mux) Remove(h sys.Handle) bool {
	if !that.IsValid() {
		return false
	}
	that.lock.Lock()
	defer that.lock.Unlock()
	e, found := that.entries[h]
	if !found {
		return false
	}
	e.closing = true
	delete(that.entries, h)
	that.removeWriteWatch(e)
	that.dropReady(e)
	if e.readPending {
		that.src.Cancel(e.handle, &e.op)
	}
	that.tryDelete(e)
	return true
}

// Wait fills out with up to maxEvents ready events and returns the
// count. timeoutMs < 0 blocks until a completion or a wakeup arrives.
func (that *Mux) Wait(out []iface.Event, maxEvents, timeoutMs int) int {
	if out == nil || maxEvents <= 0 || !that.IsValid() {
		return 0
	}
	if maxEvents > len(out) {
		maxEvents = len(out)
	}

	that.lock.Lock()
	if that.closed {
		that.lock.Unlock()
		return 0
	}
	// Consume whatever the facility already holds before injecting the
	// optimistic writes. Skipping this would let a busy write watch
	// starve probe completions, since a non-empty ready queue returns
	// without ever retrieving.
	that.drainAvailableLocked()
	that.queueWriteReady()
	count := that.popReady(out, maxEvents)
	if count > 0 || that.toDoTask {
		that.lock.Unlock()
		that.runTasks()
		return count
	}
	that.lock.Unlock()

	c, ok := that.src.Retrieve(timeoutMs)
	if !ok {
		// Timeout, nothing dequeued.
		that.runTasks()
		return 0
	}

	that.lock.Lock()
	if that.closed {
		// A concurrent Close is draining; keep its op accounting right
		// and nudge its retrieve loop.
		that.handleCompletion(c)
		if that.pendingOps == 0 {
			_ = that.src.PostSentinel(iface.WakeKey)
		}
		that.lock.Unlock()
		return 0
	}
	that.handleCompletion(c)
	that.drainAvailableLocked()

	that.queueWriteReady()
	count = that.popReady(out, maxEvents)
	that.lock.Unlock()
	that.runTasks()
	return count
}

// drainAvailableLocked consumes every completion that can be had
// without blocking, unbounded by maxEvents; completions often arrive
// in bursts.
func (that *Mux) drainAvailableLocked() {
	for {
		c, ok := that.src.Retrieve(0)
		if !ok {
			return
		}
		that.handleCompletion(c)
	}
}

// Wakeup unblocks one waiter stuck in Wait by posting a sentinel
// completion on the reserved key. Safe to call from any goroutine.
func (that *Mux) Wakeup() {
	if !that.IsValid() {
		return
	}
	if err := that.src.PostSentinel(iface.WakeKey); err != nil {
		logger.Warningf("wakeup: %v", err)
	}
}

func (that *Mux) AddTask(f iface.TaskFunc, arg iface.TaskArg) error {
	if !that.usable() {
		return errs.ErrMuxClosed
	}
	that.tasks.add(false, f, arg, that.Wakeup)
	return nil
}

func (that *Mux) AddPriorTask(f iface.TaskFunc, arg iface.TaskArg) error {
	if !that.usable() {
		return errs.ErrMuxClosed
	}
	that.tasks.add(true, f, arg, that.Wakeup)
	return nil
}

func (that *Mux) usable() bool {
	if !that.IsValid() {
		return false
	}
	that.lock.Lock()
	defer that.lock.Unlock()
	return !that.closed
}

func (that *Mux) runTasks() {
	that.lock.Lock()
	todo := that.toDoTask
	that.toDoTask = false
	that.lock.Unlock()
	if todo {
		that.tasks.run(that.Wakeup)
	}
}

// Close cancels every outstanding probe and drains their completions so
// that no in-flight operation can reference a reclaimed entry, then
// releases the completion facility. Idempotent; the multiplexer is
// unusable afterwards.
func (that *Mux) Close() {
	if !that.IsValid() {
		return
	}
	that.lock.Lock()
	if that.closed {
		that.lock.Unlock()
		return
	}
	that.closed = true

	for h, e := range that.entries {
		e.closing = true
		delete(that.entries, h)
		that.removeWriteWatch(e)
		that.dropReady(e)
		if e.readPending {
			that.src.Cancel(e.handle, &e.op)
		}
	}

	for that.pendingOps > 0 {
		that.lock.Unlock()
		c, ok := that.src.Retrieve(-1)
		that.lock.Lock()
		if ok {
			that.handleCompletion(c)
		}
	}

	that.ready = fifo.New()
	that.writeWatch = list.New()
	that.lock.Unlock()

	if err := that.src.Close(); err != nil {
		logger.Warningf("completion source close: %v", err)
	}
	that.tasks.release()
}
