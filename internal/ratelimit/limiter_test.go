package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("allows requests under the limit", func(t *testing.T) {
		limiter := NewMemoryLimiter(3, time.Minute)

		for i := 0; i < 3; i++ {
			decision := limiter.Check(ctx, "device-1")
			assert.True(t, decision.Allowed, "request %d should be allowed", i+1)
		}
	})

	t.Run("denies requests over the limit", func(t *testing.T) {
		limiter := NewMemoryLimiter(3, time.Minute)

		for i := 0; i < 3; i++ {
			limiter.Check(ctx, "device-1")
		}

		decision := limiter.Check(ctx, "device-1")
		assert.False(t, decision.Allowed)
		assert.Equal(t, 0, decision.Remaining)
		assert.Greater(t, decision.RetryAfter, time.Duration(0))
	})

	t.Run("tracks keys independently", func(t *testing.T) {
		limiter := NewMemoryLimiter(1, time.Minute)

		assert.True(t, limiter.Check(ctx, "device-1").Allowed)
		assert.False(t, limiter.Check(ctx, "device-1").Allowed)
		assert.True(t, limiter.Check(ctx, "device-2").Allowed)
	})

	t.Run("reports remaining budget", func(t *testing.T) {
		limiter := NewMemoryLimiter(3, time.Minute)

		assert.Equal(t, 2, limiter.Check(ctx, "device-1").Remaining)
		assert.Equal(t, 1, limiter.Check(ctx, "device-1").Remaining)
		assert.Equal(t, 0, limiter.Check(ctx, "device-1").Remaining)
	})

	t.Run("window slides", func(t *testing.T) {
		limiter := NewMemoryLimiter(1, 50*time.Millisecond)

		assert.True(t, limiter.Check(ctx, "device-1").Allowed)
		assert.False(t, limiter.Check(ctx, "device-1").Allowed)

		time.Sleep(60 * time.Millisecond)

		assert.True(t, limiter.Check(ctx, "device-1").Allowed)
	})

	t.Run("retry after is at least one second", func(t *testing.T) {
		limiter := NewMemoryLimiter(1, 10*time.Millisecond)

		limiter.Check(ctx, "device-1")
		decision := limiter.Check(ctx, "device-1")

		assert.False(t, decision.Allowed)
		assert.GreaterOrEqual(t, decision.RetryAfter, time.Second)
	})
}

func TestMemoryLimiterConcurrency(t *testing.T) {
	limiter := NewMemoryLimiter(100, time.Minute)
	ctx := context.Background()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(id int) {
			for j := 0; j < 50; j++ {
				limiter.Check(ctx, fmt.Sprintf("device-%d", id))
			}
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	// each key saw 50 requests against a limit of 100
	for i := 0; i < 10; i++ {
		decision := limiter.Check(ctx, fmt.Sprintf("device-%d", i))
		assert.True(t, decision.Allowed)
	}
}
