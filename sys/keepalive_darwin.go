//go:build darwin

package sys

import "syscall"

const (
	tcpKeepIntvl = syscall.TCP_KEEPINTVL
	tcpKeepIdle  = syscall.TCP_KEEPALIVE
)
