package screenrec

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// mediaClock measures elapsed recording time, excluding paused intervals.
type mediaClock struct {
	clk clock.PassiveClock

	mu       sync.Mutex
	start    time.Time
	pausedAt time.Time
	paused   time.Duration
	isPaused bool
}

func newMediaClock(clk clock.PassiveClock) *mediaClock {
	return &mediaClock{clk: clk, start: clk.Now()}
}

// Now returns the media time. It does not advance while paused.
func (c *mediaClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isPaused {
		return c.pausedAt.Sub(c.start) - c.paused
	}
	return c.clk.Since(c.start) - c.paused
}

func (c *mediaClock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isPaused {
		c.isPaused = true
		c.pausedAt = c.clk.Now()
	}
}

func (c *mediaClock) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isPaused {
		c.isPaused = false
		c.paused += c.clk.Since(c.pausedAt)
	}
}
