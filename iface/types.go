package iface

import (
	"github.com/moqsien/gkmux/sys"
)

// Event is one item filled into the caller's buffer by Wait.
type Event struct {
	Handle sys.Handle
	Events uint32
	Data   interface{}
}

type Options struct {
	TaskPoolSize  int  // size of the goroutine pool running deferred tasks
	LockOSThread  bool // lock event loops to OS threads
	ConnKeepAlive int  // tcp keep-alive seconds for accepted sockets
}

type TaskArg interface{}

type TaskFunc func(arg TaskArg) error

type AsyncCallback func(arg interface{}) error

type AsyncWriteHook struct {
	Go   AsyncCallback
	Data []byte
}
