//go:build linux

package poll

import (
	"os"
	"sync"
	"unsafe"

	"github.com/moqsien/processes/logger"
	"golang.org/x/sys/unix"

	"github.com/moqsien/gkmux/iface"
	"github.com/moqsien/gkmux/sys"
	"github.com/moqsien/gkmux/utils/errs"
)

var (
	wakeVal uint64 = 1
	wakeBuf        = (*(*[8]byte)(unsafe.Pointer(&wakeVal)))[:]
)

// Poller is the native readiness backend on linux. Readiness comes
// straight from epoll, so no probe emulation is involved, but the
// Add/Mod/Remove/Wait contract and event semantics match Mux exactly.
type Poller struct {
	pollFd   int
	pollEvFd int
	lock     sync.Mutex
	fds      map[int]*natEntry
	tasks    *taskRunner
	evBuf    [8]byte
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
	if p.pollFd, err = unix.EpollCreate1(unix.EPOLL_CLOEXEC); err != nil {
		logger.Errorf("epoll_create1: %v", os.NewSyscallError("epoll_create1", err))
		return
	}
	if p.pollEvFd, err = unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC); err != nil {
		unix.Close(p.pollFd)
		logger.Errorf("eventfd: %v", os.NewSyscallError("eventfd", err))
		return
	}
	ev := unix.EpollEvent{Fd: int32(p.pollEvFd), Events: unix.EPOLLIN}
	if err = unix.EpollCtl(p.pollFd, unix.EPOLL_CTL_ADD, p.pollEvFd, &ev); err != nil {
		unix.Close(p.pollFd)
		unix.Close(p.pollEvFd)
		logger.Errorf("epoll_ctl_add eventfd: %v", os.NewSyscallError("epoll_ctl_add", err))
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

func epollBits(events uint32) (bits uint32) {
	if events&iface.EventRead != 0 {
		bits |= unix.EPOLLIN | unix.EPOLLPRI
	}
	if events&iface.EventWrite != 0 {
		bits |= unix.EPOLLOUT
	}
	return
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
	ev := unix.EpollEvent{Fd: int32(fd), Events: epollBits(events)}
	if err := unix.EpollCtl(that.pollFd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		logger.Warningf("epoll_ctl_add fd %d: %v", fd, os.NewSyscallError("epoll_ctl_add", err))
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
	ev := unix.EpollEvent{Fd: int32(fd), Events: epollBits(events)}
	if err := unix.EpollCtl(that.pollFd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		logger.Warningf("epoll_ctl_mod fd %d: %v", fd, os.NewSyscallError("epoll_ctl_mod", err))
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
	if err := unix.EpollCtl(that.pollFd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		logger.Warningf("epoll_ctl_del fd %d: %v", fd, os.NewSyscallError("epoll_ctl_del", err))
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
	// One extra slot so a wakeup cannot crowd out a real event.
	evs := make([]unix.EpollEvent, maxEvents+1)

	var n int
	var err error
	for {
		n, err = unix.EpollWait(that.pollFd, evs, timeoutMs)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		logger.Errorf("epoll_wait: %v", os.NewSyscallError("epoll_wait", err))
		return 0
	}

	that.lock.Lock()
	count := 0
	for i := 0; i < n && count < maxEvents; i++ {
		fd := int(evs[i].Fd)
		if fd == that.pollEvFd {
			_, _ = unix.Read(that.pollEvFd, that.evBuf[:])
			that.toDoTask = true
			continue
		}
		e, found := that.fds[fd]
		if !found {
			continue
		}
		events := translateEpoll(evs[i].Events)
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

func translateEpoll(bits uint32) (events uint32) {
	if bits&(unix.EPOLLIN|unix.EPOLLPRI) != 0 {
		events |= iface.EventRead
	}
	if bits&unix.EPOLLOUT != 0 {
		events |= iface.EventWrite
	}
	if bits&unix.EPOLLERR != 0 {
		events |= iface.EventError
	}
	if bits&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		events |= iface.EventHangup
	}
	return
}

func (that *Poller) Wakeup() {
	if !that.IsValid() {
		return
	}
	if _, err := unix.Write(that.pollEvFd, wakeBuf); err != nil && err != unix.EAGAIN {
		logger.Warningf("wakeup: %v", os.NewSyscallError("write", err))
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

	if err := unix.Close(that.pollFd); err != nil {
		logger.Warningf("close pollfd: %v", os.NewSyscallError("close", err))
	}
	if err := unix.Close(that.pollEvFd); err != nil {
		logger.Warningf("close eventfd: %v", os.NewSyscallError("close", err))
	}
	that.tasks.release()
}
