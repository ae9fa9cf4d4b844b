package sys

import (
	"errors"

	"github.com/moqsien/gkmux/utils/errs"
)

// IsAborted reports whether err acknowledges a cancelled operation.
// Such completions are consumed silently, never surfaced as events.
func IsAborted(err error) bool {
	return errors.Is(err, errs.ErrOpAborted) || sysAborted(err)
}

// IsDisconnect reports whether err belongs to the disconnect class:
// reset, abort or forced shutdown of the peer.
func IsDisconnect(err error) bool {
	return errors.Is(err, errs.ErrConnReset) ||
		errors.Is(err, errs.ErrConnAborted) ||
		errors.Is(err, errs.ErrSockShutdown) ||
		sysDisconnect(err)
}
