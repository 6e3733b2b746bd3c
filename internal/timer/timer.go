// Package timer abstracts bounded waits, adapted from the teacher
// playground's Timer/Timeout interfaces. This system has only one use
// for a timeout in the CORE protocol -- a proposer's bounded random
// backoff after a NACK when BACKOFF is enabled -- but keeping it
// behind an interface lets the playground and tests inject
// controllable timeouts instead of waiting on a real clock, the same
// way the teacher's controllableTimeoutFactory does for election and
// heartbeat timeouts.
package timer

import "time"

// Timeout is a single pending wait.
type Timeout interface {
	Done() <-chan struct{}
	Cancel()
}

// Factory creates Timeouts. The real implementation wraps time.AfterFunc;
// a controllable implementation (see controllable.go) lets tests and
// the playground fire timeouts on demand.
type Factory interface {
	After(d time.Duration) Timeout
}

type realTimeout struct {
	timer *time.Timer
	done  chan struct{}
}

func (t *realTimeout) Done() <-chan struct{} {
	return t.done
}

func (t *realTimeout) Cancel() {
	t.timer.Stop()
}

// RealFactory produces timeouts backed by the system clock.
type RealFactory struct{}

func (RealFactory) After(d time.Duration) Timeout {
	done := make(chan struct{})
	t := time.AfterFunc(d, func() { close(done) })
	return &realTimeout{timer: t, done: done}
}
