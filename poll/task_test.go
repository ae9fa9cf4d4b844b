package poll_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/moqsien/gkmux/fake"
	"github.com/moqsien/gkmux/iface"
	"github.com/moqsien/gkmux/poll"
)

func waitCycle(m *poll.Mux, timeoutMs int) {
	buf := make([]iface.Event, 4)
	m.Wait(buf, 4, timeoutMs)
}

func TestAddTaskRunsAfterWakeup(t *testing.T) {
	m := poll.NewMux(fake.NewSource(), nil)
	defer m.Close()

	done := make(chan iface.TaskArg, 1)
	err := m.AddTask(func(arg iface.TaskArg) error {
		done <- arg
		return nil
	}, "payload")
	if err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	// AddTask wakes the poller itself; one cycle picks the task up.
	waitCycle(m, 1000)

	select {
	case arg := <-done:
		if arg != "payload" {
			t.Fatalf("task arg = %v, want payload", arg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
}

func TestPriorTasksDrainFully(t *testing.T) {
	m := poll.NewMux(fake.NewSource(), nil)
	defer m.Close()

	const n = 50
	var ran int32
	for i := 0; i < n; i++ {
		if err := m.AddPriorTask(func(iface.TaskArg) error {
			atomic.AddInt32(&ran, 1)
			return nil
		}, nil); err != nil {
			t.Fatalf("AddPriorTask: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&ran) < n && time.Now().Before(deadline) {
		waitCycle(m, 50)
	}
	if got := atomic.LoadInt32(&ran); got != n {
		t.Fatalf("ran %d prior tasks, want %d", got, n)
	}
}

func TestAddTaskAfterCloseFails(t *testing.T) {
	m := poll.NewMux(fake.NewSource(), nil)
	m.Close()
	if err := m.AddTask(func(iface.TaskArg) error { return nil }, nil); err == nil {
		t.Fatal("AddTask after Close should fail")
	}
	if err := m.AddPriorTask(func(iface.TaskArg) error { return nil }, nil); err == nil {
		t.Fatal("AddPriorTask after Close should fail")
	}
}
