// Package split keeps the compact display record synchronized between the
// two halves of a split device. Pushes are fire-and-forget; the local state
// stays authoritative and a stale mirror on the other side is acceptable.
package split

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/example/underglow/internal/hid"
)

// Remote battery pull outcomes that are conditions, not failures.
var (
	ErrNotConnected = errors.New("split: peripheral not connected")
	ErrInvalidIndex = errors.New("split: invalid peripheral index")
)

// Record is the synchronized display state. The coordinating half computes
// it; the other half only mirrors it.
type Record struct {
	Layer      uint8
	Indicators hid.Indicators
	On         bool
	Effect     uint8
}

// Link is the transport to the counterpart half.
type Link interface {
	// Push sends the record. Must not block the render tick.
	Push(Record) error
	// RemoteBattery returns the counterpart's charge percentage, or
	// ErrNotConnected / ErrInvalidIndex.
	RemoteBattery(idx int) (int, error)
}

// settleDelay postpones the re-push after the link comes back so we do not
// chatter while the connection is still settling.
const settleDelay = 2500 * time.Millisecond

// Pusher wraps a Link with logging, burst limiting and the deferred re-push
// that follows a reconnect.
type Pusher struct {
	// Settle is the reconnect re-push delay; tests shorten it.
	Settle time.Duration

	mu      sync.Mutex
	link    Link
	log     zerolog.Logger
	limiter *rate.Limiter
	pending *time.Timer
	last    Record
	sent    bool
}

func NewPusher(link Link, log zerolog.Logger) *Pusher {
	return &Pusher{
		Settle: settleDelay,
		link:   link,
		log:    log,
		// a record changes at most on layer/indicator flips; ten per
		// second absorbs any plausible burst
		limiter: rate.NewLimiter(rate.Limit(10), 5),
	}
}

// Push sends the record. Failures are logged and dropped; there is no retry.
func (p *Pusher) Push(r Record) {
	p.mu.Lock()
	p.last = r
	p.sent = true
	p.mu.Unlock()

	if p.link == nil {
		return
	}
	if !p.limiter.Allow() {
		p.log.Debug().Msg("push rate limited, dropping")
		return
	}
	if err := p.link.Push(r); err != nil {
		p.log.Error().Err(err).Msg("display record push failed")
	}
}

// Connected handles a link connectivity notification. A reconnect schedules
// one deferred re-push of the last record; a disconnect cancels it.
func (p *Pusher) Connected(up bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !up {
		if p.pending != nil {
			p.pending.Stop()
			p.pending = nil
		}
		return
	}

	if p.pending != nil {
		p.pending.Stop()
	}
	p.pending = time.AfterFunc(p.Settle, func() {
		p.mu.Lock()
		r, ok := p.last, p.sent
		p.pending = nil
		p.mu.Unlock()
		if ok {
			p.Push(r)
		}
	})
}

// RemoteBattery proxies the pull through the underlying link.
func (p *Pusher) RemoteBattery(idx int) (int, error) {
	if p.link == nil {
		return 0, ErrNotConnected
	}
	return p.link.RemoteBattery(idx)
}
