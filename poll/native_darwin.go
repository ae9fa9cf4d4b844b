//go:build darwin

package poll

import (
	"os"
	"sync"

	"github.com/moqsien/processes/logger"
	"golang.org/x/sys/unix"

	"github.com/moqsien/gkmux/iface"
	"github.com/moqsien/gkmux/sys"
	"github.com/moqsien/gkmux/utils/errs"
)

// Poller is the native readiness backend on darwin, driven by kqueue.
// Wakeup rides on an EVFILT_USER registration with ident 0.
type Poller struct {
	kqFd     int
	lock     sync.Mutex
	fds      map[int]*natEntry
	tasks    *taskRunner
	toDoTask bool
	closed   bool
	valid    bool
}

type natEntry struct {
	events uint32
	data   interface{}
}

func NewPoller(opts *iface.Options) (p *Poller) {
	p = &Poller{fds: make(map[int]*natEntry)}
	var err error
	if p.kqFd, err = unix.Kqueue(); err != nil {
		logger.Errorf("kqueue: %v", os.NewSyscallError("kqueue", err))
		return
	}
	_, err = unix.Kevent(p.kqFd, []unix.Kevent_t{{
		Ident:  0,
		Filter: unix.EVFILT_USER,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
	}}, nil, nil)
	if err != nil {
		unix.Close(p.kqFd)
		logger.Errorf("kevent user filter: %v", os.NewSyscallError("kevent_add", err))
		return
	}
	size := iface.DefaultTaskPoolSize
	if opts != nil && opts.TaskPoolSize > 0 {
		size = opts.TaskPoolSize
	}
	if p.tasks, err = newTaskRunner(size); err != nil {
		logger.Errorf("poller task pool: %v", err)
		return
	}
	p.valid = true
	return
}

func (that *Poller) IsValid() bool {
	return that != nil && that.valid
}

func (that *Poller) applyLocked(fd int, events uint32) error {
	changes := make([]unix.Kevent_t, 0, 2)
	readFlags, writeFlags := uint16(unix.EV_DELETE), uint16(unix.EV_DELETE)
	if events&iface.EventRead != 0 {
		readFlags = unix.EV_ADD
	}
	if events&iface.EventWrite != 0 {
		writeFlags = unix.EV_ADD
	}
	changes = append(changes,
		unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: readFlags},
		unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: writeFlags},
	)
	for _, ch := range changes {
		// Deleting a filter that was never added reports ENOENT; that is
		// the expected idle case.
		if _, err := unix.Kevent(that.kqFd, []unix.Kevent_t{ch}, nil, nil); err != nil && err != unix.ENOENT {
			return os.NewSyscallError("kevent", err)
		}
	}
	return nil
}

func (that *Poller) Add(h sys.Handle, events uint32, data interface{}) bool {
	if !that.IsValid() {
		return false
	}
	that.lock.Lock()
	defer that.lock.Unlock()
	fd := int(h)
	if that.closed {
		return false
	}
	if _, found := that.fds[fd]; found {
		return false
	}
	if err := that.applyLocked(fd, events); err != nil {
		logger.Warningf("kevent add fd %d: %v", fd, err)
		return false
	}
	that.fds[fd] = &natEntry{events: events, data: data}
	return true
}

func (that *Poller) Mod(h sys.Handle, events uint32, data interface{}) bool {
	if !that.IsValid() {
		return false
	}
	that.lock.Lock()
	defer that.lock.Unlock()
	fd := int(h)
	e, found := that.fds[fd]
	if that.closed || !found {
		return false
	}
	if err := that.applyLocked(fd, events); err != nil {
		logger.Warningf("kevent mod fd %d: %v", fd, err)
		return false
	}
	e.events = events
	e.data = data
	return true
}

func (that *Poller) Remove(h sys.Handle) bool {
	if !that.IsValid() {
		return false
	}
	that.lock.Lock()
	defer that.lock.Unlock()
	fd := int(h)
	if _, found := that.fds[fd]; !found {
		return false
	}
	delete(that.fds, fd)
	if err := that.applyLocked(fd, 0); err != nil {
		logger.Warningf("kevent del fd %d: %v", fd, err)
	}
	return true
}

func (that *Poller) Wait(out []iface.Event, maxEvents, timeoutMs int) int {
	if out == nil || maxEvents <= 0 || !that.IsValid() {
		return 0
	}
	if maxEvents > len(out) {
		maxEvents = len(out)
	}
	evs := make([]unix.Kevent_t, maxEvents+1)

	var tsp *unix.Timespec
	if timeoutMs >= 0 {
		ts := unix.NsecToTimespec(int64(timeoutMs) * 1e6)
		tsp = &ts
	}

	var n int
	var err error
	for {
		n, err = unix.Kevent(that.kqFd, nil, evs, tsp)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		logger.Errorf("kevent wait: %v", os.NewSyscallError("kevent", err))
		return 0
	}

	that.lock.Lock()
	count := 0
	for i := 0; i < n && count < maxEvents; i++ {
		ev := &evs[i]
		if ev.Filter == unix.EVFILT_USER {
			that.toDoTask = true
			continue
		}
		fd := int(ev.Ident)
		e, found := that.fds[fd]
		if !found {
			continue
		}
		events := translateKevent(ev)
		if events == 0 {
			continue
		}
		out[count] = iface.Event{Handle: sys.Handle(fd), Events: events, Data: e.data}
		count++
	}
	that.lock.Unlock()
	that.runTasks()
	return count
}

func translateKevent(ev *unix.Kevent_t) (events uint32) {
	switch ev.Filter {
	case unix.EVFILT_READ:
		events |= iface.EventRead
	case unix.EVFILT_WRITE:
		events |= iface.EventWrite
	}
	if ev.Flags&unix.EV_ERROR != 0 {
		events |= iface.EventError
	}
	if ev.Flags&unix.EV_EOF != 0 {
		events |= iface.EventHangup
	}
	return
}

func (that *Poller) Wakeup() {
	if !that.IsValid() {
		return
	}
	_, err := unix.Kevent(that.kqFd, []unix.Kevent_t{{
		Ident:  0,
		Filter: unix.EVFILT_USER,
		Fflags: unix.NOTE_TRIGGER,
	}}, nil, nil)
	if err != nil {
		logger.Warningf("wakeup: %v", os.NewSyscallError("kevent_trigger", err))
	}
}

func (that *Poller) AddTask(f iface.TaskFunc, arg iface.TaskArg) error {
	if !that.IsValid() {
		return errs.ErrMuxClosed
	}
	that.tasks.add(false, f, arg, that.Wakeup)
	return nil
}

func (that *Poller) AddPriorTask(f iface.TaskFunc, arg iface.TaskArg) error {
	if !that.IsValid() {
		return errs.ErrMuxClosed
	}
	that.tasks.add(true, f, arg, that.Wakeup)
	return nil
}

func (that *Poller) runTasks() {
	that.lock.Lock()
	todo := that.toDoTask
	that.toDoTask = false
	that.lock.Unlock()
	if todo {
		that.tasks.run(that.Wakeup)
	}
}

func (that *Poller) Close() {
	if !that.IsValid() {
		return
	}
	that.lock.Lock()
	if that.closed {
		that.lock.Unlock()
		return
	}
	that.closed = true
	that.fds = make(map[int]*natEntry)
	that.lock.Unlock()

	if err := unix.Close(that.kqFd); err != nil {
		logger.Warningf("close kqueue: %v", os.NewSyscallError("close", err))
	}
	that.tasks.release()
}
