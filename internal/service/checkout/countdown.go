package checkout

import (
	"sync"
	"time"

	"github.com/kirinyoku/tixfront/internal/clock"
)

type State string

const (
	StateInactive State = "inactive"
	StateRunning  State = "running"
	StateExpired  State = "expired"
)

// Timer is a point-in-time reading of the countdown.
type Timer struct {
	State            State `json:"state"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

// Countdown counts a server hold down one second per tick. It owns its
// ticker: Start replaces it, Stop and expiry dispose it.
type Countdown struct {
	clk      clock.Clock
	onExpire func()

	mu        sync.Mutex
	state     State
	remaining int
	ticker    *clock.Ticker
	done      chan struct{}
}

func NewCountdown(clk clock.Clock, onExpire func()) *Countdown {
	if clk == nil {
		clk = clock.Real()
	}
	if onExpire == nil {
		onExpire = func() {}
	}
	return &Countdown{
		clk:      clk,
		onExpire: onExpire,
		state:    StateInactive,
	}
}

// Start seeds the countdown with the seconds the server reports. A
// negative value means no timeout applies and leaves it inactive.
func (c *Countdown) Start(seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	if seconds < 0 {
		c.state, c.remaining = StateInactive, 0
		return
	}

	c.state, c.remaining = StateRunning, seconds

	t := c.clk.NewTicker(time.Second)
	done := make(chan struct{})
	c.ticker, c.done = t, done

	go c.run(t, done)
}

// Stop disposes the ticker. A running countdown becomes inactive; an
// expired one stays expired.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	if c.state == StateRunning {
		c.state = StateInactive
	}
}

// Reset disposes the ticker and returns the countdown to inactive from any
// state, expired included.
func (c *Countdown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.state, c.remaining = StateInactive, 0
}

func (c *Countdown) Timer() Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Timer{State: c.state, RemainingSeconds: c.remaining}
}

func (c *Countdown) run(t *clock.Ticker, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if c.tick(t) {
				c.onExpire()
				return
			}
		}
	}
}

// tick moves the countdown one second on and reports whether this tick
// expired it. Ticks of a replaced ticker are ignored.
func (c *Countdown) tick(t *clock.Ticker) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning || c.ticker != t {
		return false
	}

	if c.remaining > 1 {
		c.remaining--
		return false
	}

	c.remaining = 0
	c.state = StateExpired
	c.stopLocked()

	return true
}

func (c *Countdown) stopLocked() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	close(c.done)
	c.ticker, c.done = nil, nil
}
