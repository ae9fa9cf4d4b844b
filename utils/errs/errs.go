package errs

import "errors"

var (
	ErrMuxClosed     = errors.New("multiplexer has been closed")
	ErrOpAborted     = errors.New("pending operation aborted")
	ErrConnReset     = errors.New("connection reset by peer")
	ErrConnAborted   = errors.New("connection aborted")
	ErrSockShutdown  = errors.New("socket has been shut down")
	ErrLoopShutdown  = errors.New("event loop is going to be shutdown")
	ErrAcceptSocket  = errors.New("accept a new connection error")
	ErrUnsupportedOp = errors.New("unsupported operation")
)
