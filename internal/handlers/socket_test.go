package handlers

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTypingThrottle(t *testing.T) {
	throttle := newTypingThrottle(time.Hour)

	assert.True(t, throttle.allow("alice"))
	assert.False(t, throttle.allow("alice"), "second emit inside the interval is suppressed")
	assert.True(t, throttle.allow("bob"), "throttling is per sender")
}

func TestTypingThrottle_AllowsAfterInterval(t *testing.T) {
	throttle := newTypingThrottle(time.Millisecond)

	assert.True(t, throttle.allow("alice"))
	time.Sleep(5 * time.Millisecond)
	assert.True(t, throttle.allow("alice"))
}

func TestTypingThrottle_ShedsExpiredEntries(t *testing.T) {
	throttle := newTypingThrottle(time.Millisecond)

	for i := 0; i < typingSweepThreshold; i++ {
		throttle.allow(fmt.Sprintf("user-%d", i))
	}
	time.Sleep(5 * time.Millisecond)

	assert.True(t, throttle.allow("fresh"))

	throttle.mu.Lock()
	defer throttle.mu.Unlock()
	assert.Less(t, len(throttle.last), typingSweepThreshold, "expired entries must be swept")
}
