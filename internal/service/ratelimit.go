package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out outgoing requests with one token bucket per operation
type Pacer struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewPacer creates a pacer allowing requestsPerMin requests per minute per operation.
// It returns nil when requestsPerMin is not positive; a nil Pacer never waits.
func NewPacer(requestsPerMin, burstCapacity int) *Pacer {
	if requestsPerMin <= 0 {
		return nil
	}
	if burstCapacity <= 0 {
		burstCapacity = 1
	}
	return &Pacer{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(float64(requestsPerMin) / 60.0),
		burst:    burstCapacity,
	}
}

// GetLimiter retrieves or creates the limiter for an operation
func (p *Pacer) GetLimiter(operation string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	limiter, exists := p.limiters[operation]
	if !exists {
		limiter = rate.NewLimiter(p.rate, p.burst)
		p.limiters[operation] = limiter
	}
	return limiter
}

// Wait blocks until operation may proceed. waited reports whether the call was delayed.
func (p *Pacer) Wait(ctx context.Context, operation string) (waited bool, err error) {
	if p == nil {
		return false, nil
	}

	reservation := p.GetLimiter(operation).Reserve()
	if !reservation.OK() {
		return false, fmt.Errorf("rate limit burst exceeded for %s", operation)
	}

	delay := reservation.Delay()
	if delay == 0 {
		return false, nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true, nil
	case <-ctx.Done():
		reservation.Cancel()
		return true, ctx.Err()
	}
}

// GetStats returns current limiter statistics
func (p *Pacer) GetStats() map[string]any {
	if p == nil {
		return map[string]any{"enabled": false}
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	return map[string]any{
		"enabled":          true,
		"requests_per_min": float64(p.rate) * 60,
		"burst":            p.burst,
		"operations":       len(p.limiters),
	}
}
