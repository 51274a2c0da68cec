package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"go.uber.org/zap"
)

// GuardConfig bounds how a sender calls its provider
type GuardConfig struct {
	Name             string
	Timeout          time.Duration
	RateLimit        float64
	RateBurst        int
	MaxWait          time.Duration
	BreakerFailures  uint32
	BreakerOpenFor   time.Duration
	BreakerHalfOpens uint32
}

// GuardedSender wraps a Sender with a per-call timeout, a local rate limit
// and a circuit breaker
type GuardedSender struct {
	next    Sender
	timeout time.Duration
	maxWait time.Duration
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewGuardedSender wraps next
func NewGuardedSender(next Sender, cfg GuardConfig, logger *zap.Logger) *GuardedSender {
	g := &GuardedSender{
		next:    next,
		timeout: cfg.Timeout,
		maxWait: cfg.MaxWait,
		logger:  logger,
	}
	if g.maxWait <= 0 {
		g.maxWait = 2 * time.Second
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 10
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.BreakerHalfOpens,
		Timeout:     cfg.BreakerOpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= failures },
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("delivery circuit breaker state changed",
				zap.String("sender", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return g
}

// Send delivers through next unless the provider is rate limited or the breaker is open
func (g *GuardedSender) Send(ctx context.Context, address, message string) (string, error) {
	if g.limiter != nil {
		waitCtx, cancel := context.WithTimeout(ctx, g.maxWait)
		err := g.limiter.Wait(waitCtx)
		cancel()
		if err != nil {
			return "", fmt.Errorf("rate limited: %w", err)
		}
	}

	res, err := g.breaker.Execute(func() (interface{}, error) {
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return g.call(callCtx, address, message)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("provider unavailable: %w", err)
	}
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// call returns when next returns or ctx is done, whichever comes first
func (g *GuardedSender) call(ctx context.Context, address, message string) (string, error) {
	type result struct {
		id  string
		err error
	}
	done := make(chan result, 1)
	go func() {
		id, err := g.next.Send(ctx, address, message)
		done <- result{id: id, err: err}
	}()

	select {
	case r := <-done:
		return r.id, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("send timed out: %w", ctx.Err())
	}
}

// State returns the breaker state
func (g *GuardedSender) State() gobreaker.State {
	return g.breaker.State()
}
