//go:build windows

package sys

import (
	"errors"

	"golang.org/x/sys/windows"
)

func sysAborted(err error) bool {
	return errors.Is(err, windows.ERROR_OPERATION_ABORTED)
}

func sysDisconnect(err error) bool {
	return errors.Is(err, windows.WSAECONNRESET) ||
		errors.Is(err, windows.WSAECONNABORTED) ||
		errors.Is(err, windows.WSAESHUTDOWN) ||
		errors.Is(err, windows.ERROR_NETNAME_DELETED)
}
