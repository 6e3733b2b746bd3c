package timer

import (
	"sync"
	"time"
)

// controllableTimeout is fired explicitly by test/playground code
// calling ControllableFactory.FireNext, rather than by a real clock.
type controllableTimeout struct {
	done chan struct{}
}

func (t *controllableTimeout) Done() <-chan struct{} {
	return t.done
}

func (t *controllableTimeout) Cancel() {
	// Cancelling a controllable timeout just means it will never be
	// fired by the test harness again; nothing to release.
}

// ControllableFactory records every timeout requested so a test can
// inspect and fire them deterministically, following the shape of the
// teacher playground's controllableTimeoutFactory.
type ControllableFactory struct {
	mu      sync.Mutex
	pending []*controllableTimeout
	created chan *controllableTimeout
}

// NewControllableFactory creates a factory. If notify is non-nil, every
// created timeout is also pushed there for tests that want to observe
// creation order.
func NewControllableFactory(notify chan *controllableTimeout) *ControllableFactory {
	return &ControllableFactory{created: notify}
}

// After ignores d entirely: the returned timeout fires only when a
// test or the playground calls FireNext.
func (f *ControllableFactory) After(_ time.Duration) Timeout {
	t := &controllableTimeout{done: make(chan struct{})}
	f.mu.Lock()
	f.pending = append(f.pending, t)
	f.mu.Unlock()
	if f.created != nil {
		f.created <- t
	}
	return t
}

// FireNext fires the oldest un-fired timeout and removes it from the
// pending set.
func (f *ControllableFactory) FireNext() {
	f.mu.Lock()
	if len(f.pending) == 0 {
		f.mu.Unlock()
		return
	}
	t := f.pending[0]
	f.pending = f.pending[1:]
	f.mu.Unlock()
	close(t.done)
}
