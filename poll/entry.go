package poll

import (
	"container/list"

	"github.com/moqsien/gkmux/iface"
	"github.com/moqsien/gkmux/sys"
)

// entry is the registry record for one socket. It is owned by the Mux
// and reclaimed only when closing is set, no probe is in flight and the
// ready ring no longer references it.
type entry struct {
	handle      sys.Handle
	events      uint32
	data        interface{}
	closing     bool
	readPending bool
	inReady     bool
	watchWrite  bool
	pending     uint32
	watchEl     *list.Element
	op          sys.PeekOp
}

func (that *Mux) addWriteWatch(e *entry) {
	if e.watchWrite {
		return
	}
	e.watchWrite = true
	e.watchEl = that.writeWatch.PushBack(e)
}

func (that *Mux) removeWriteWatch(e *entry) {
	if !e.watchWrite {
		return
	}
	e.watchWrite = false
	that.writeWatch.Remove(e.watchEl)
	e.watchEl = nil
}

func (that *Mux) enqueueReady(e *entry, events uint32) {
	if events == 0 || e.closing {
		return
	}
	e.pending |= events
	if !e.inReady {
		e.inReady = true
		that.ready.Add(e)
	}
}

// dropReady withdraws an entry's reportable events. The ring slot is
// not erased; it is skipped when popped, which also keeps the deletion
// gate honest until the ring truly lets go of the entry.
func (that *Mux) dropReady(e *entry) {
	e.pending = 0
}

func (that *Mux) tryDelete(e *entry) {
	if !e.closing || e.readPending || e.inReady {
		return
	}
	e.op.Owner = nil
	e.data = nil
}

func (that *Mux) queueWriteReady() {
	for el := that.writeWatch.Front(); el != nil; el = el.Next() {
		that.enqueueReady(el.Value.(*entry), iface.EventWrite)
	}
}

func (that *Mux) popReady(out []iface.Event, maxEvents int) int {
	count := 0
	for count < maxEvents && that.ready.Length() > 0 {
		e := that.ready.Remove().(*entry)
		e.inReady = false
		events := e.pending
		e.pending = 0

		// Mask readable/writable by interest; Error/Hangup always pass.
		mask := e.events&iface.ReadWriteEvents | iface.EventError | iface.EventHangup
		events &= mask

		if events != 0 {
			out[count] = iface.Event{Handle: e.handle, Events: events, Data: e.data}
			count++
		}

		if !e.closing && e.events&iface.EventRead != 0 {
			that.armRead(e)
		}
		if e.closing {
			that.tryDelete(e)
		}
	}
	return count
}
