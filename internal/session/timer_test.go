package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountdownExpiresExactlyOnce(t *testing.T) {
	var mu sync.Mutex
	expiries := 0
	var seen []int

	c := NewCountdown(3, time.Millisecond,
		func(remaining int) {
			mu.Lock()
			seen = append(seen, remaining)
			mu.Unlock()
		},
		func() {
			mu.Lock()
			expiries++
			mu.Unlock()
		},
	)
	c.Start()

	require.Eventually(t, c.Expired, time.Second, time.Millisecond)

	// The loop stops at zero; give it room to misbehave before asserting.
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, expiries)
	assert.Equal(t, 0, c.Remaining())
	assert.Equal(t, []int{2, 1, 0}, seen, "ticks count down and clamp at zero")
}

func TestCountdownStopPreventsExpiry(t *testing.T) {
	fired := make(chan struct{}, 1)
	c := NewCountdown(1000, time.Millisecond, nil, func() { fired <- struct{}{} })
	c.Start()

	time.Sleep(10 * time.Millisecond)
	c.Stop()
	remaining := c.Remaining()

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, remaining, c.Remaining(), "a stopped countdown must not tick")
	assert.False(t, c.Expired())

	select {
	case <-fired:
		t.Fatal("expiry fired after Stop")
	default:
	}

	// Stop is idempotent.
	c.Stop()
}

func TestCountdownRestartAfterExpiryIsNoop(t *testing.T) {
	c := NewCountdown(1, time.Millisecond, nil, nil)
	c.Start()
	require.Eventually(t, c.Expired, time.Second, time.Millisecond)

	c.Start()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 0, c.Remaining())
	assert.True(t, c.Expired())
}

func TestCountdownZeroSecondsExpiresOnFirstTick(t *testing.T) {
	c := NewCountdown(0, time.Millisecond, nil, nil)
	c.Start()
	require.Eventually(t, c.Expired, time.Second, time.Millisecond)
	assert.Equal(t, 0, c.Remaining())
}
