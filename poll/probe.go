package poll

import (
	"github.com/moqsien/gkmux/iface"
	"github.com/moqsien/gkmux/sys"
)

// armRead issues the non-consuming 1-byte preview read that stands in
// for a readability signal. The previewed byte stays in the socket
// buffer, so the same condition is detected again on the next probe
// until the caller drains the data.
func (that *Mux) armRead(e *entry) {
	if e.closing || e.readPending {
		return
	}
	if err := that.src.Peek(e.handle, &e.op); err != nil {
		events := iface.EventError
		if sys.IsDisconnect(err) {
			events |= iface.EventHangup
		}
		that.enqueueReady(e, events)
		return
	}
	e.readPending = true
	that.pendingOps++
}

func (that *Mux) handleCompletion(c sys.Completion) {
	if c.Op == nil {
		if c.Key == iface.WakeKey {
			that.toDoTask = true
		}
		return
	}
	e, _ := c.Op.Owner.(*entry)
	if e == nil {
		return
	}

	if e.readPending {
		e.readPending = false
		that.pendingOps--
	}

	// A cancellation acknowledgment produces no event; it only permits
	// a deferred deletion to go ahead, or re-arms when interest came
	// back while the abort was still in flight.
	if c.Err != nil && sys.IsAborted(c.Err) {
		if e.closing {
			that.tryDelete(e)
		} else if e.events&iface.EventRead != 0 {
			that.armRead(e)
		}
		return
	}

	if e.closing {
		that.tryDelete(e)
		return
	}

	var events uint32
	if c.Err != nil {
		events = iface.EventError
		if sys.IsDisconnect(c.Err) {
			events |= iface.EventHangup
		}
	} else {
		events = iface.EventRead
		if c.N == 0 {
			// Orderly close by the peer.
			events |= iface.EventHangup
		}
	}

	// Error/Hangup are reported even without read interest; Read is not.
	if e.events&iface.EventRead == 0 {
		events &^= iface.EventRead
	}
	that.enqueueReady(e, events)
}
