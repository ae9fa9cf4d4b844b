/*
Package sys generalizes the platform pieces the multiplexer backends are
built on: socket handles, the completion-port facility on windows, and
plain socket syscalls on unix.
*/
package sys

// Handle is a socket descriptor: an int fd on unix, a SOCKET on windows.
type Handle uintptr

const InvalidHandle Handle = ^Handle(0)

// Completion is the outcome of one retrieved operation. Op is nil for
// posted sentinels, in which case Key carries the sentinel key.
type Completion struct {
	Op  *PeekOp
	Key uintptr
	N   int
	Err error
}
