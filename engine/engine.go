/*
Package engine picks the right multiplexer backend for the platform:
the completion-port bridge on windows, the native readiness poller on
linux and darwin. Both satisfy iface.IMux with identical semantics.
*/
package engine

import (
	"errors"

	"github.com/moqsien/gkmux/iface"
)

var ErrBackend = errors.New("multiplexer backend unavailable")

func New(opts *iface.Options) (iface.IMux, error) {
	return newMux(opts)
}
