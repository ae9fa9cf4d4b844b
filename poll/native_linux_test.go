//go:build linux

package poll_test

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/moqsien/gkmux/iface"
	"github.com/moqsien/gkmux/poll"
	"github.com/moqsien/gkmux/sys"
)

func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestPollerReadLevelTriggered(t *testing.T) {
	p := poll.NewPoller(nil)
	if !p.IsValid() {
		t.Fatal("poller should be valid")
	}
	defer p.Close()
	local, peer := socketPair(t)

	if !p.Add(sys.Handle(local), iface.EventRead, "native") {
		t.Fatal("Add should succeed")
	}
	if _, err := unix.Write(peer, []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	buf := make([]iface.Event, 4)
	for i := 0; i < 2; i++ {
		n := p.Wait(buf, 4, 1000)
		if n != 1 || buf[0].Events&iface.EventRead == 0 || buf[0].Data != "native" {
			t.Fatalf("cycle %d: Wait = %d %+v, want one Read event", i, n, buf[0])
		}
	}

	var b [8]byte
	if _, err := unix.Read(local, b[:]); err != nil {
		t.Fatalf("read: %v", err)
	}
	if n := p.Wait(buf, 4, 50); n != 0 {
		t.Fatalf("Wait after drain = %d, want 0", n)
	}
}

func TestPollerWriteAndMod(t *testing.T) {
	p := poll.NewPoller(nil)
	defer p.Close()
	local, _ := socketPair(t)

	if !p.Add(sys.Handle(local), iface.EventWrite, nil) {
		t.Fatal("Add should succeed")
	}
	buf := make([]iface.Event, 4)
	if n := p.Wait(buf, 4, 1000); n != 1 || buf[0].Events&iface.EventWrite == 0 {
		t.Fatalf("Wait = %d, want one Write event", n)
	}

	if !p.Mod(sys.Handle(local), iface.EventRead, nil) {
		t.Fatal("Mod should succeed")
	}
	if n := p.Wait(buf, 4, 50); n != 0 {
		t.Fatalf("Wait after dropping write interest = %d, want 0", n)
	}

	if !p.Remove(sys.Handle(local)) {
		t.Fatal("Remove should succeed")
	}
	if p.Remove(sys.Handle(local)) {
		t.Fatal("second Remove should fail")
	}
}

func TestPollerWakeupAndTasks(t *testing.T) {
	p := poll.NewPoller(nil)
	defer p.Close()

	done := make(chan struct{}, 1)
	if err := p.AddTask(func(iface.TaskArg) error {
		done <- struct{}{}
		return nil
	}, nil); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	buf := make([]iface.Event, 4)
	if n := p.Wait(buf, 4, 1000); n != 0 {
		t.Fatalf("wakeup-only Wait = %d, want 0", n)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
}
