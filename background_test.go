package tmr

import (
	"sync"
	"testing"
	"time"
)

func TestStartStopReadingDispatchesToListeners(t *testing.T) {
	rd, _ := newConnectedSim(t, []SimTag{tagA(), tagB()})

	var mu sync.Mutex
	var got []TagReadData
	done := make(chan struct{}, 1)
	if err := rd.AddListener(func(tag TagReadData) {
		mu.Lock()
		got = append(got, tag)
		if len(got) == 2 {
			select {
			case done <- struct{}{}:
			default:
			}
		}
		mu.Unlock()
	}); err != nil {
		t.Fatalf("AddListener: %v", err)
	}

	if err := rd.StartReading(SimplePlan{Protocol: ProtocolGen2}, 50*time.Millisecond, 10*time.Millisecond); err != nil {
		t.Fatalf("StartReading: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for background reads to dispatch")
	}

	rd.StopReading()

	mu.Lock()
	n := len(got)
	mu.Unlock()
	if n < 2 {
		t.Fatalf("dispatched %d tags, want at least 2", n)
	}
}

func TestBackgroundWorkerNotifiesExceptionListenersAndDisables(t *testing.T) {
	rd, sim := newConnectedSim(t, []SimTag{tagA()})
	sim.failNextClearBuffer = true

	var mu sync.Mutex
	var gotErr error
	done := make(chan struct{}, 1)
	if err := rd.AddExceptionListener(func(err error) {
		mu.Lock()
		gotErr = err
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("AddExceptionListener: %v", err)
	}

	if err := rd.StartReading(SimplePlan{Protocol: ProtocolGen2}, 50*time.Millisecond, 10*time.Millisecond); err != nil {
		t.Fatalf("StartReading: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for exception listener to fire")
	}

	mu.Lock()
	err := gotErr
	mu.Unlock()
	if err == nil {
		t.Fatal("exception listener fired with a nil error")
	}

	rd.bg.cond.L.Lock()
	enabled := rd.bg.enabled
	rd.bg.cond.L.Unlock()
	if enabled {
		t.Fatal("background worker should disable itself after a read failure")
	}

	rd.StopReading()
}

func TestStopReadingIsIdempotentBeforeStart(t *testing.T) {
	rd, _ := newConnectedSim(t, nil)
	rd.StopReading() // must not block or panic on a never-started worker
	rd.StopReading()
}

func TestClearListenersRemovesAllListeners(t *testing.T) {
	rd, _ := newConnectedSim(t, []SimTag{tagA()})
	called := false
	if err := rd.AddListener(func(TagReadData) { called = true }); err != nil {
		t.Fatalf("AddListener: %v", err)
	}
	if err := rd.ClearListeners(); err != nil {
		t.Fatalf("ClearListeners: %v", err)
	}
	rd.dispatch([]TagReadData{{EPC: tagA().EPC}})
	if called {
		t.Fatal("listener invoked after ClearListeners")
	}
}
