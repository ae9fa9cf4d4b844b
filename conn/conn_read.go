package conn

import (
	"io"

	"github.com/moqsien/gkmux/sys"
	"github.com/moqsien/gkmux/utils/byteslice"
)

func (that *Conn) ReadFromFd() error {
	buf := byteslice.Get(ReadBufferSize)
	defer byteslice.Put(buf)

	n, err := sys.Read(that.Fd, buf)
	if err != nil || n == 0 {
		if err == sys.EAGAIN {
			return nil
		}
		if n == 0 && err == nil {
			err = sys.ECONNRESET
		}
		return that.Close(err)
	}
	that.Buffer = buf[:n]
	err = that.Handler.OnTrack(that)
	that.Buffer = nil
	return err
}

// Read drains the chunk currently staged in Buffer; valid inside an
// OnTrack callback.
func (that *Conn) Read(p []byte) (n int, err error) {
	n = copy(p, that.Buffer)
	that.Buffer = that.Buffer[n:]
	if n == 0 && len(p) > 0 {
		err = io.EOF
	}
	return
}
