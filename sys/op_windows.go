//go:build windows

package sys

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// PeekOp carries one in-flight preview read. The overlapped struct must
// stay the first field: completions are mapped back to their PeekOp by
// casting the overlapped pointer the port hands out.
type PeekOp struct {
	ov    windows.Overlapped
	buf   windows.WSABuf
	peek  [1]byte
	Owner interface{}
}

func opFromOverlapped(ov *windows.Overlapped) *PeekOp {
	return (*PeekOp)(unsafe.Pointer(ov))
}
