// Package sched provides the periodic tick trigger. A timer goroutine fires
// at a fixed interval and enqueues at most one pipeline pass into a
// single-slot queue drained by one long-lived consumer, so a slow pass never
// stacks duplicate work behind itself and the timer context never runs
// rendering work.
package sched

import (
	"sync"
	"time"
)

// DefaultInterval is the render tick period.
const DefaultInterval = 25 * time.Millisecond

// Ticker owns the timer and the serialized work consumer. The consumer runs
// for the Ticker's whole life; Start and Stop only gate the timer, which
// lets a pass stop its own ticker without deadlocking.
type Ticker struct {
	interval time.Duration
	gate     func() bool // sampled on every fire; false drops the tick
	pass     func()      // one unit of pipeline work

	work chan struct{}
	quit chan struct{}

	mu       sync.Mutex
	timerEnd chan struct{} // non-nil while the timer runs
	timerWG  sync.WaitGroup
	closed   bool
}

// New builds a stopped ticker and launches its consumer. gate is consulted
// on every timer fire; pass runs on the consumer goroutine, never on the
// timer's.
func New(interval time.Duration, gate func() bool, pass func()) *Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	t := &Ticker{
		interval: interval,
		gate:     gate,
		pass:     pass,
		work:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
	}
	go t.consume()
	return t
}

// Start launches the timer and fires one pass immediately, mirroring a timer
// started with no initial delay. Starting a running ticker is a no-op.
func (t *Ticker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timerEnd != nil || t.closed {
		return
	}
	end := make(chan struct{})
	t.timerEnd = end

	t.Trigger()

	t.timerWG.Add(1)
	go t.run(end)
}

// Stop halts the timer. A queued-but-unconsumed tick is dropped. Stopping a
// stopped ticker is a no-op.
func (t *Ticker) Stop() {
	t.mu.Lock()
	end := t.timerEnd
	t.timerEnd = nil
	t.mu.Unlock()
	if end == nil {
		return
	}
	close(end)
	t.timerWG.Wait()

	select {
	case <-t.work:
	default:
	}
}

// Close stops the timer and terminates the consumer. The ticker cannot be
// restarted afterwards.
func (t *Ticker) Close() {
	t.Stop()
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.quit)
	}
	t.mu.Unlock()
}

// Running reports whether the timer is active.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timerEnd != nil
}

// Trigger enqueues one pass if none is already pending. Used by the timer
// and by tests that drive the pipeline without real time.
func (t *Ticker) Trigger() {
	if t.gate != nil && !t.gate() {
		return
	}
	select {
	case t.work <- struct{}{}:
	default:
		// a pass is already pending; never queue a second
	}
}

func (t *Ticker) run(end chan struct{}) {
	defer t.timerWG.Done()
	tick := time.NewTicker(t.interval)
	defer tick.Stop()
	for {
		select {
		case <-end:
			return
		case <-tick.C:
			t.Trigger()
		}
	}
}

func (t *Ticker) consume() {
	for {
		select {
		case <-t.quit:
			return
		case <-t.work:
			t.pass()
		}
	}
}
