//go:build !windows

package sys

import (
	"errors"
	"syscall"
)

func sysAborted(err error) bool {
	return errors.Is(err, syscall.ECANCELED)
}

func sysDisconnect(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ESHUTDOWN) ||
		errors.Is(err, syscall.EPIPE)
}
