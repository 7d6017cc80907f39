package loop

import (
	"testing"
	"time"

	"github.com/neopult/neopult/internal/logging"
)

func TestRunLaterDrainsBeforeNextExternal(t *testing.T) {
	l := New(logging.NewDefault())
	go l.Run()
	defer l.Stop()

	var order []string
	done := make(chan struct{})

	l.Post(func() {
		order = append(order, "first")
		l.RunLater(func() { order = append(order, "deferred-1") })
		l.RunLater(func() { order = append(order, "deferred-2") })
	})
	l.Post(func() {
		order = append(order, "second")
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for second external task")
	}

	want := []string{"first", "deferred-1", "deferred-2", "second"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestRunOneRecoversPanic(t *testing.T) {
	l := New(logging.NewDefault())
	go l.Run()
	defer l.Stop()

	done := make(chan struct{})
	l.Post(func() { panic("boom") })
	l.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not survive a panicking task")
	}
}
