package iface

import (
	"net"

	"github.com/moqsien/gkmux/sys"
)

// IMux is the readiness multiplexer contract shared by the
// completion-bridged backend and the native readiness backends.
// Wait fills out with at most maxEvents items and returns the count;
// timeoutMs < 0 blocks indefinitely. A nil buffer or non-positive
// maxEvents yields 0 without side effects.
type IMux interface {
	Add(h sys.Handle, events uint32, data interface{}) bool
	Mod(h sys.Handle, events uint32, data interface{}) bool
	Remove(h sys.Handle) bool
	Wait(out []Event, maxEvents, timeoutMs int) int
	Wakeup()
	AddTask(f TaskFunc, arg TaskArg) error
	AddPriorTask(f TaskFunc, arg TaskArg) error
	Close()
}

type IELoop interface {
	GetConnCount() int32
}

type BalancerIterFunc func(key int, val IELoop) bool

type IBalancer interface {
	Register(IELoop)
	Next(addr ...net.Addr) IELoop
	Iterator(f BalancerIterFunc)
	Len() int
}

// ICompletionSource is the completion facility the bridged backend is
// built on. Peek issues a non-consuming 1-byte preview read; a nil
// error means a completion for op will be retrieved later, an error
// means the operation failed immediately and no completion follows.
type ICompletionSource interface {
	Associate(h sys.Handle) error
	Peek(h sys.Handle, op *sys.PeekOp) error
	Retrieve(timeoutMs int) (sys.Completion, bool)
	Cancel(h sys.Handle, op *sys.PeekOp)
	PostSentinel(key uintptr) error
	Close() error
}
