package session

import (
	"sync"
	"time"
)

// Countdown is a tick-driven countdown timer. One goroutine decrements the
// counter once per interval; reaching zero clamps there, fires the expiry
// callback exactly once and stops the loop. Stop is safe from any goroutine
// and never blocks on the ticker loop.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	interval  time.Duration
	stopCh    chan struct{}
	running   bool
	expired   bool

	onTick   func(remaining int)
	onExpire func()
}

// NewCountdown creates a stopped countdown holding seconds. Callbacks may be
// nil. The interval is one second unless overridden for tests.
func NewCountdown(seconds int, interval time.Duration, onTick func(int), onExpire func()) *Countdown {
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{
		remaining: seconds,
		interval:  interval,
		onTick:    onTick,
		onExpire:  onExpire,
	}
}

// Start launches the ticker loop. Starting a running or expired countdown is
// a no-op.
func (c *Countdown) Start() {
	c.mu.Lock()
	if c.running || c.expired {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stopCh = make(chan struct{})
	stop := c.stopCh
	c.mu.Unlock()

	go c.run(stop)
}

func (c *Countdown) run(stop chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			remaining, expiredNow := c.tick()
			if c.onTick != nil {
				c.onTick(remaining)
			}
			if expiredNow {
				if c.onExpire != nil {
					c.onExpire()
				}
				return
			}
		}
	}
}

// tick decrements by one, clamping at zero. The second return is true only on
// the tick that first reaches zero.
func (c *Countdown) tick() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.expired || !c.running {
		return c.remaining, false
	}

	c.remaining--
	if c.remaining <= 0 {
		c.remaining = 0
		c.expired = true
		c.running = false
		return 0, true
	}
	return c.remaining, false
}

// Stop halts the ticker loop without firing expiry. Idempotent.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	close(c.stopCh)
}

// Remaining returns the current counter value.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Expired reports whether the countdown has fired.
func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}
