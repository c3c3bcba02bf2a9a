// Package fakeclock provides a controllable Clock implementation for testing.
package fakeclock

import (
	"sync"
	"time"

	"github.com/acolita/remotefs/internal/ports"
)

// Clock is a fake clock that can be controlled in tests.
type Clock struct {
	mu      sync.Mutex
	current time.Time
	tickers []*Ticker
}

// New creates a new fake clock initialized to the given time.
func New(initial time.Time) *Clock {
	return &Clock{current: initial}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NewTicker returns a ticker that fires when Advance crosses its interval
// or when Tick is called.
func (c *Clock) NewTicker(d time.Duration) ports.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &Ticker{
		interval: d,
		next:     c.current.Add(d),
		ch:       make(chan time.Time, 1),
	}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves the clock forward by d, firing tickers whose next deadline
// has passed. A ticker fires at most once per Advance, like a real ticker
// with a slow reader.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	now := c.current
	tickers := append([]*Ticker(nil), c.tickers...)
	c.mu.Unlock()

	for _, t := range tickers {
		t.advance(now)
	}
}

// Tick fires every active ticker once.
func (c *Clock) Tick() {
	now := c.Now()
	c.mu.Lock()
	tickers := append([]*Ticker(nil), c.tickers...)
	c.mu.Unlock()

	for _, t := range tickers {
		t.fire(now)
	}
}

// Tickers returns the number of tickers that have not been stopped.
func (c *Clock) Tickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range c.tickers {
		if !t.Stopped() {
			n++
		}
	}
	return n
}

// Ticker is a fake ticker for testing.
type Ticker struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
	stopped  bool
	ch       chan time.Time
}

// C returns the channel on which ticks are delivered.
func (t *Ticker) C() <-chan time.Time {
	return t.ch
}

// Stop turns off the ticker.
func (t *Ticker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

// Stopped reports whether Stop was called.
func (t *Ticker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *Ticker) advance(now time.Time) {
	t.mu.Lock()
	due := !t.stopped && !now.Before(t.next)
	if due {
		for !now.Before(t.next) {
			t.next = t.next.Add(t.interval)
		}
	}
	t.mu.Unlock()

	if due {
		t.send(now)
	}
}

func (t *Ticker) fire(now time.Time) {
	if !t.Stopped() {
		t.send(now)
	}
}

func (t *Ticker) send(now time.Time) {
	select {
	case t.ch <- now:
	default:
	}
}

var (
	_ ports.Clock  = (*Clock)(nil)
	_ ports.Ticker = (*Ticker)(nil)
)
