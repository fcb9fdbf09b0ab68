package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestAllowWithinLimit(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 3, WindowDuration: time.Minute, Logger: zap.NewNop()})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"))
	}
	assert.False(t, rl.Allow("10.0.0.1"))
}

func TestKeysAreIndependent(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 1, WindowDuration: time.Minute, Logger: zap.NewNop()})
	defer rl.Stop()

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestWindowResets(t *testing.T) {
	rl := New(Config{MaxRequestsPerMinute: 1, WindowDuration: 20 * time.Millisecond, Logger: zap.NewNop()})
	defer rl.Stop()

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, rl.Allow("10.0.0.1"))
}
