package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerLLMClient stops calling a provider that keeps failing so the
// fallback provider (or the apology path) answers immediately.
type BreakerLLMClient struct {
	next LLMClient
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerLLMClient wraps next in a circuit breaker named name.
func NewBreakerLLMClient(name string, next LLMClient) *BreakerLLMClient {
	return &BreakerLLMClient{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 2,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
			},
			// Caller cancellations say nothing about provider health.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
	}
}

func (c *BreakerLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	out, err := c.cb.Execute(func() (interface{}, error) {
		return c.next.Complete(ctx, req)
	})
	if err != nil {
		return LLMResponse{}, err
	}
	return out.(LLMResponse), nil
}

// State exposes the breaker state for health reporting.
func (c *BreakerLLMClient) State() string {
	return c.cb.State().String()
}
