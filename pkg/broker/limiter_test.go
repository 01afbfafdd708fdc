package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/tobert/hootenanny-go/pkg/proto"
)

func TestRateLimiterUsesPerToolConfiguration(t *testing.T) {
	rl := NewRateLimiter(func() *rate.Limiter { return rate.NewLimiter(rate.Inf, 0) })
	rl.Configure("stream.slice", 20, 1)

	ctx := context.Background()
	require.NoError(t, rl.Wait(ctx, "stream.slice"))

	start := time.Now()
	require.NoError(t, rl.Wait(ctx, "stream.slice"))
	assert.Greater(t, time.Since(start), 10*time.Millisecond, "second call for a 20/sec bucket should have waited")
}

func TestRateLimiterUnconfiguredToolUsesDefault(t *testing.T) {
	rl := NewRateLimiter(func() *rate.Limiter { return rate.NewLimiter(rate.Inf, 0) })
	require.NoError(t, rl.Wait(context.Background(), proto.ToolName("anything")))
}

func TestRateLimiterNilLimiterNeverBlocks(t *testing.T) {
	rl := NewRateLimiter(nil)
	require.NoError(t, rl.Wait(context.Background(), "x"))
}
