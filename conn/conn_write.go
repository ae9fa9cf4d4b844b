package conn

import (
	"github.com/moqsien/gkmux/iface"
	"github.com/moqsien/gkmux/sys"
)

func (that *Conn) write(data []byte) (n int, err error) {
	n = len(data)
	if !that.OutBuffer.IsEmpty() {
		return that.OutBuffer.Write(data)
	}
	var sent int
	if sent, err = sys.Write(that.Fd, data); err != nil {
		if err == sys.EAGAIN {
			_, _ = that.OutBuffer.Write(data)
			if !that.Mux.Mod(that.Fd, iface.ReadWriteEvents, that) {
				return -1, that.Close()
			}
			return n, nil
		}
		return -1, that.Close(err)
	}
	if sent < n {
		_, _ = that.OutBuffer.Write(data[sent:])
		if !that.Mux.Mod(that.Fd, iface.ReadWriteEvents, that) {
			return -1, that.Close()
		}
	}
	return
}

// WriteToFd flushes the out-buffer on a Write event. Write events keep
// coming every cycle while interest persists, so interest is dropped
// as soon as the buffer is empty.
func (that *Conn) WriteToFd() error {
	for !that.OutBuffer.IsEmpty() {
		iov := that.OutBuffer.Peek(-1)
		n, err := sys.Write(that.Fd, iov[0])
		if err == sys.EAGAIN {
			return nil
		}
		if err != nil {
			return that.Close(err)
		}
		that.OutBuffer.Discard(n)
	}
	if !that.Mux.Mod(that.Fd, iface.EventRead, that) {
		return that.Close()
	}
	return nil
}

func (that *Conn) Write(p []byte) (int, error) {
	return that.write(p)
}

func (that *Conn) asyncWrite(arg iface.TaskArg) (err error) {
	if !that.Opened {
		return
	}
	hook, ok := arg.(*iface.AsyncWriteHook)
	if ok {
		_, err = that.write(hook.Data)
		if hook.Go != nil {
			err = hook.Go(that)
		}
	}
	return
}

// AsyncWrite defers the write to the multiplexer's task queue; cb, if
// given, runs after the data has been handed to the socket or buffered.
func (that *Conn) AsyncWrite(data []byte, cb ...iface.AsyncCallback) error {
	var callback iface.AsyncCallback
	if len(cb) > 0 {
		callback = cb[0]
	}
	return that.Mux.AddTask(that.asyncWrite, &iface.AsyncWriteHook{
		Go:   callback,
		Data: data,
	})
}
