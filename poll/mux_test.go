package poll_test

import (
	"errors"
	"testing"
	"time"

	"github.com/moqsien/gkmux/fake"
	"github.com/moqsien/gkmux/iface"
	"github.com/moqsien/gkmux/poll"
	"github.com/moqsien/gkmux/utils/errs"
)

func newTestMux(t *testing.T) (*poll.Mux, *fake.Source) {
	t.Helper()
	src := fake.NewSource()
	m := poll.NewMux(src, nil)
	if !m.IsValid() {
		t.Fatal("mux should be valid")
	}
	return m, src
}

func TestAddDuplicateFails(t *testing.T) {
	m, src := newTestMux(t)
	defer m.Close()
	s := src.NewSocket()

	if !m.Add(s.Handle(), iface.EventRead, nil) {
		t.Fatal("first Add should succeed")
	}
	if m.Add(s.Handle(), iface.EventRead, nil) {
		t.Fatal("duplicate Add should fail")
	}
}

func TestAddUnknownHandleFails(t *testing.T) {
	m, _ := newTestMux(t)
	defer m.Close()
	if m.Add(9999, iface.EventRead, nil) {
		t.Fatal("Add should fail when association fails")
	}
}

func TestModRemoveUnknownFails(t *testing.T) {
	m, _ := newTestMux(t)
	defer m.Close()
	if m.Mod(9999, iface.EventRead, nil) {
		t.Fatal("Mod on unknown handle should fail")
	}
	if m.Remove(9999) {
		t.Fatal("Remove on unknown handle should fail")
	}
}

func TestReAddAfterRemove(t *testing.T) {
	m, src := newTestMux(t)
	defer m.Close()
	s := src.NewSocket()

	if !m.Add(s.Handle(), iface.EventRead, nil) {
		t.Fatal("Add should succeed")
	}
	if !m.Remove(s.Handle()) {
		t.Fatal("Remove should succeed")
	}
	if !m.Add(s.Handle(), iface.EventRead, nil) {
		t.Fatal("re-Add after Remove should succeed")
	}
}

func TestWaitInvalidArgs(t *testing.T) {
	m, src := newTestMux(t)
	defer m.Close()
	s := src.NewSocket()
	m.Add(s.Handle(), iface.ReadWriteEvents, nil)

	buf := make([]iface.Event, 4)
	if n := m.Wait(nil, 4, 0); n != 0 {
		t.Fatalf("Wait with nil buffer = %d, want 0", n)
	}
	if n := m.Wait(buf, 0, 0); n != 0 {
		t.Fatalf("Wait with maxEvents 0 = %d, want 0", n)
	}
	if n := m.Wait(buf, -1, 0); n != 0 {
		t.Fatalf("Wait with negative maxEvents = %d, want 0", n)
	}
}

func TestOptimisticWrite(t *testing.T) {
	m, src := newTestMux(t)
	defer m.Close()
	s := src.NewSocket()
	if !m.Add(s.Handle(), iface.ReadWriteEvents, "wdata") {
		t.Fatal("Add should succeed")
	}

	buf := make([]iface.Event, 10)
	n := m.Wait(buf, 10, 0)
	if n < 1 {
		t.Fatalf("Wait = %d, want at least one event before any data", n)
	}
	found := false
	for i := 0; i < n; i++ {
		if buf[i].Handle == s.Handle() && buf[i].Events&iface.EventWrite != 0 {
			found = true
			if buf[i].Data != "wdata" {
				t.Fatalf("Data = %v, want wdata", buf[i].Data)
			}
		}
	}
	if !found {
		t.Fatal("expected a Write event for the socket")
	}

	// Optimistic writability re-reports on every cycle.
	if n = m.Wait(buf, 10, 0); n < 1 || buf[0].Events&iface.EventWrite == 0 {
		t.Fatal("Write should be reported again on the next cycle")
	}
}

func TestNoFalseReadEvent(t *testing.T) {
	m, src := newTestMux(t)
	defer m.Close()
	s := src.NewSocket()
	m.Add(s.Handle(), iface.EventRead, nil)

	buf := make([]iface.Event, 4)
	if n := m.Wait(buf, 4, 50); n != 0 {
		t.Fatalf("Wait = %d, want 0: no data was ever sent", n)
	}
}

func TestReadLevelTriggered(t *testing.T) {
	m, src := newTestMux(t)
	defer m.Close()
	s := src.NewSocket()
	m.Add(s.Handle(), iface.EventRead, "rdata")

	s.Send([]byte("x"))
	buf := make([]iface.Event, 4)

	n := m.Wait(buf, 4, 1000)
	if n != 1 || buf[0].Events&iface.EventRead == 0 || buf[0].Data != "rdata" {
		t.Fatalf("first Wait = %d %+v, want one Read event", n, buf[0])
	}
	// The probe never consumes the byte, so the condition re-reports.
	n = m.Wait(buf, 4, 1000)
	if n != 1 || buf[0].Events&iface.EventRead == 0 {
		t.Fatalf("second Wait = %d, want Read again while data is unread", n)
	}

	// One probe completed before the application drained; its stale
	// report is delivered, then the stream goes quiet.
	s.Drain()
	if n = m.Wait(buf, 4, 1000); n != 1 {
		t.Fatalf("post-drain flush Wait = %d, want 1", n)
	}
	if n = m.Wait(buf, 4, 50); n != 0 {
		t.Fatalf("Wait after drain = %d, want 0", n)
	}
}

func TestHangupReported(t *testing.T) {
	m, src := newTestMux(t)
	defer m.Close()
	s := src.NewSocket()
	m.Add(s.Handle(), iface.EventRead, nil)

	s.Hangup()
	buf := make([]iface.Event, 4)

	want := iface.EventRead | iface.EventHangup
	for i := 0; i < 3; i++ {
		n := m.Wait(buf, 4, 1000)
		if n != 1 || buf[0].Events != want {
			t.Fatalf("cycle %d: Wait = %d events %#x, want Read|Hangup", i, n, buf[0].Events)
		}
	}
	if !m.Remove(s.Handle()) {
		t.Fatal("Remove should succeed")
	}
	if n := m.Wait(buf, 4, 50); n != 0 {
		t.Fatalf("Wait after Remove = %d, want 0", n)
	}
}

func TestTransportErrorClassified(t *testing.T) {
	m, src := newTestMux(t)
	defer m.Close()
	buf := make([]iface.Event, 4)

	s1 := src.NewSocket()
	m.Add(s1.Handle(), iface.EventRead, nil)
	s1.FailNext(errs.ErrConnReset)
	if n := m.Wait(buf, 4, 1000); n != 1 || buf[0].Events != iface.EventError|iface.EventHangup {
		t.Fatalf("reset should surface as Error|Hangup, got %d %#x", n, buf[0].Events)
	}
	m.Remove(s1.Handle())

	s2 := src.NewSocket()
	m.Add(s2.Handle(), iface.EventRead, nil)
	s2.FailNext(errors.New("transport trouble"))
	if n := m.Wait(buf, 4, 1000); n != 1 || buf[0].Events != iface.EventError {
		t.Fatalf("generic failure should surface as Error only, got %d %#x", n, buf[0].Events)
	}
}

func TestImmediateProbeFailure(t *testing.T) {
	m, src := newTestMux(t)
	defer m.Close()
	s := src.NewSocket()
	s.Break(errs.ErrConnAborted)

	if !m.Add(s.Handle(), iface.EventRead, nil) {
		t.Fatal("Add should still succeed; the failure surfaces as an event")
	}
	// Each delivery re-arms, and each re-arm fails again right away, so
	// a single call may report the condition up to maxEvents times.
	buf := make([]iface.Event, 4)
	n := m.Wait(buf, 4, 0)
	if n < 1 {
		t.Fatal("immediate failure should surface as an event")
	}
	for i := 0; i < n; i++ {
		if buf[i].Handle != s.Handle() || buf[i].Events != iface.EventError|iface.EventHangup {
			t.Fatalf("event %d = %+v, want Error|Hangup for the broken socket", i, buf[i])
		}
	}
}

func TestErrorDeliveredWithoutReadInterest(t *testing.T) {
	m, src := newTestMux(t)
	defer m.Close()
	s := src.NewSocket()
	m.Add(s.Handle(), iface.EventRead, nil)
	s.FailNext(errs.ErrConnReset)

	// Interest is dropped before the failure is delivered; errors are
	// not maskable and must still come out.
	if !m.Mod(s.Handle(), 0, nil) {
		t.Fatal("Mod should succeed")
	}
	buf := make([]iface.Event, 4)
	if n := m.Wait(buf, 4, 1000); n != 1 || buf[0].Events&iface.EventError == 0 {
		t.Fatalf("Error must pass the interest mask, got %d %#x", n, buf[0].Events)
	}
}

func TestModSwitchesInterest(t *testing.T) {
	m, src := newTestMux(t)
	defer m.Close()
	s := src.NewSocket()
	m.Add(s.Handle(), iface.ReadWriteEvents, "old")

	if !m.Mod(s.Handle(), iface.EventWrite, "new") {
		t.Fatal("Mod should succeed")
	}

	buf := make([]iface.Event, 4)
	n := m.Wait(buf, 4, 100)
	if n != 1 || buf[0].Events != iface.EventWrite || buf[0].Data != "new" {
		t.Fatalf("Wait = %d %+v, want one Write with updated data", n, buf[0])
	}

	// Dropping write interest silences the optimistic events.
	if !m.Mod(s.Handle(), iface.EventRead, "new") {
		t.Fatal("Mod should succeed")
	}
	if n = m.Wait(buf, 4, 50); n != 0 {
		t.Fatalf("Wait = %d, want 0 after losing write interest", n)
	}
}

func TestUserDataRouting(t *testing.T) {
	m, src := newTestMux(t)
	defer m.Close()
	s1 := src.NewSocket()
	s2 := src.NewSocket()
	m.Add(s1.Handle(), iface.EventRead, "u1")
	m.Add(s2.Handle(), iface.EventWrite, "u2")

	s1.Send([]byte("ping"))

	got := make(map[interface{}]uint32)
	buf := make([]iface.Event, 8)
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < 2 && time.Now().Before(deadline) {
		n := m.Wait(buf, 8, 100)
		for i := 0; i < n; i++ {
			got[buf[i].Data] |= buf[i].Events
		}
	}
	if got["u1"]&iface.EventRead == 0 {
		t.Fatalf("s1 should report Read with its user data, got %#x", got["u1"])
	}
	if got["u2"]&iface.EventWrite == 0 {
		t.Fatalf("s2 should report Write with its user data, got %#x", got["u2"])
	}
}

func TestReadNotStarvedByWriteWatch(t *testing.T) {
	m, src := newTestMux(t)
	defer m.Close()
	reader := src.NewSocket()
	writer := src.NewSocket()
	m.Add(reader.Handle(), iface.EventRead, "r")
	m.Add(writer.Handle(), iface.EventWrite, "w")

	reader.Send([]byte("ping"))

	// The writer keeps every cycle's ready queue non-empty; the
	// reader's completion must still come through on the same call.
	buf := make([]iface.Event, 8)
	n := m.Wait(buf, 8, 1000)
	var gotRead, gotWrite bool
	for i := 0; i < n; i++ {
		switch buf[i].Data {
		case "r":
			gotRead = buf[i].Events&iface.EventRead != 0
		case "w":
			gotWrite = buf[i].Events&iface.EventWrite != 0
		}
	}
	if !gotRead || !gotWrite {
		t.Fatalf("Wait = %d events, read=%v write=%v, want both in one call", n, gotRead, gotWrite)
	}
}

func TestWakeupUnblocksWait(t *testing.T) {
	m, _ := newTestMux(t)
	defer m.Close()

	done := make(chan int, 1)
	go func() {
		buf := make([]iface.Event, 4)
		done <- m.Wait(buf, 4, -1)
	}()

	time.Sleep(20 * time.Millisecond)
	m.Wakeup()

	select {
	case n := <-done:
		if n != 0 {
			t.Fatalf("woken Wait = %d, want 0", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after Wakeup")
	}
}

func TestRemoveWithProbeInFlightThenClose(t *testing.T) {
	m, src := newTestMux(t)
	s := src.NewSocket()
	m.Add(s.Handle(), iface.EventRead, nil)

	// The probe is outstanding right now; removal must defer the
	// entry's reclamation until the abort is observed.
	if !m.Remove(s.Handle()) {
		t.Fatal("Remove should succeed")
	}
	m.Close()

	if src.Outstanding() != 0 {
		t.Fatalf("outstanding probes after Close = %d, want 0", src.Outstanding())
	}
	if !src.Closed() {
		t.Fatal("completion source should be closed")
	}
}

func TestCloseIdempotentAndTerminal(t *testing.T) {
	m, src := newTestMux(t)
	s := src.NewSocket()
	m.Add(s.Handle(), iface.ReadWriteEvents, nil)

	m.Close()
	m.Close()

	if m.Add(s.Handle(), iface.EventRead, nil) {
		t.Fatal("Add after Close should fail")
	}
	if m.Mod(s.Handle(), iface.EventRead, nil) {
		t.Fatal("Mod after Close should fail")
	}
	buf := make([]iface.Event, 4)
	if n := m.Wait(buf, 4, 0); n != 0 {
		t.Fatalf("Wait after Close = %d, want 0", n)
	}
}

func TestInvalidMux(t *testing.T) {
	m := poll.NewMux(nil, nil)
	if m.IsValid() {
		t.Fatal("mux without a completion source should be invalid")
	}
	if m.Add(1, iface.EventRead, nil) {
		t.Fatal("Add on invalid mux should fail")
	}
	buf := make([]iface.Event, 4)
	if n := m.Wait(buf, 4, 0); n != 0 {
		t.Fatalf("Wait on invalid mux = %d, want 0", n)
	}
	m.Close()
}

func TestMaxEventsBoundsDrain(t *testing.T) {
	m, src := newTestMux(t)
	defer m.Close()
	socks := make([]*fake.Socket, 5)
	for i := range socks {
		socks[i] = src.NewSocket()
		m.Add(socks[i].Handle(), iface.EventWrite, i)
	}

	buf := make([]iface.Event, 8)
	if n := m.Wait(buf, 2, 0); n != 2 {
		t.Fatalf("Wait = %d, want exactly maxEvents", n)
	}
	// The remaining ready entries survive for the next cycle.
	if n := m.Wait(buf, 8, 0); n < 3 {
		t.Fatalf("Wait = %d, want the rest of the ready entries", n)
	}
}
