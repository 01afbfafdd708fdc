package broker

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/tobert/hootenanny-go/pkg/proto"
)

// RateLimiter applies a per-tool token bucket ahead of dispatch (spec.md
// §4.5's added "protect downstream workers from request bursts").
// Grounded structurally on the teacher's
// features/model/middleware.AdaptiveRateLimiter — a rate.Limiter wrapped
// at a dispatch boundary — simplified to a fixed bucket per tool since the
// broker has no equivalent of the provider's "you are being rate limited"
// signal to drive the teacher's AIMD feedback loop.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[proto.ToolName]*rate.Limiter
	def      func() *rate.Limiter
}

// NewRateLimiter builds a RateLimiter. newDefault constructs the bucket
// used for any tool without an explicit Configure call.
func NewRateLimiter(newDefault func() *rate.Limiter) *RateLimiter {
	return &RateLimiter{limiters: make(map[proto.ToolName]*rate.Limiter), def: newDefault}
}

// Configure sets a tool-specific rate and burst, overriding the default
// bucket for that tool.
func (rl *RateLimiter) Configure(name proto.ToolName, ratePerSec float64, burst int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.limiters[name] = rate.NewLimiter(rate.Limit(ratePerSec), burst)
}

func (rl *RateLimiter) limiterFor(name proto.ToolName) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if l, ok := rl.limiters[name]; ok {
		return l
	}
	if rl.def == nil {
		return nil
	}
	l := rl.def()
	rl.limiters[name] = l
	return l
}

// Wait blocks until a token for name is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, name proto.ToolName) error {
	l := rl.limiterFor(name)
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}
