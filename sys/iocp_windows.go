//go:build windows

package sys

import (
	"golang.org/x/sys/windows"

	"github.com/moqsien/gkmux/utils"
)

// IOCPSource is the completion facility backed by an I/O completion
// port. Preview reads are overlapped WSARecv calls with MSG_PEEK, so a
// detected byte is never consumed and keeps re-reporting until the
// caller drains it.
type IOCPSource struct {
	port windows.Handle
}

func NewIOCPSource() (s *IOCPSource, err error) {
	port, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return nil, utils.SysError("create_io_completion_port", err)
	}
	return &IOCPSource{port: port}, nil
}

func (that *IOCPSource) Associate(h Handle) error {
	_, err := windows.CreateIoCompletionPort(windows.Handle(h), that.port, 0, 0)
	if err != nil {
		return utils.SysError("iocp_associate", err)
	}
	return nil
}

func (that *IOCPSource) Peek(h Handle, op *PeekOp) error {
	op.ov = windows.Overlapped{}
	op.buf.Len = 1
	op.buf.Buf = &op.peek[0]
	var (
		n     uint32
		flags uint32 = windows.MSG_PEEK
	)
	err := windows.WSARecv(windows.Handle(h), &op.buf, 1, &n, &flags, &op.ov, nil)
	// Even a synchronous success still queues a completion to the port.
	if err == nil || err == windows.ERROR_IO_PENDING {
		return nil
	}
	return err
}

func (that *IOCPSource) Retrieve(timeoutMs int) (c Completion, ok bool) {
	timeout := uint32(windows.INFINITE)
	if timeoutMs >= 0 {
		timeout = uint32(timeoutMs)
	}
	var (
		n   uint32
		key uintptr
		ov  *windows.Overlapped
	)
	err := windows.GetQueuedCompletionStatus(that.port, &n, &key, &ov, timeout)
	if ov == nil {
		if err == nil {
			// Sentinel posted with a nil overlapped.
			return Completion{Key: key}, true
		}
		// Timeout or a spurious failure with nothing dequeued.
		return
	}
	return Completion{Op: opFromOverlapped(ov), Key: key, N: int(n), Err: err}, true
}

func (that *IOCPSource) Cancel(h Handle, op *PeekOp) {
	_ = windows.CancelIoEx(windows.Handle(h), &op.ov)
}

func (that *IOCPSource) PostSentinel(key uintptr) error {
	err := windows.PostQueuedCompletionStatus(that.port, 0, key, nil)
	return utils.SysError("post_queued_completion_status", err)
}

func (that *IOCPSource) Close() error {
	return utils.SysError("close_handle", windows.CloseHandle(that.port))
}
