package ai

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type GuardConfig struct {
	Name string
	// Timeout bounds a single provider call. Zero disables it.
	Timeout time.Duration
	// RequestsPerSecond limits outgoing calls. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
	// BreakerFailures consecutive failures open the breaker. Zero disables it.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

type guard struct {
	cfg     GuardConfig
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func newGuard(cfg GuardConfig) *guard {
	g := &guard{cfg: cfg}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	if cfg.BreakerFailures > 0 {
		cooldown := cfg.BreakerCooldown
		if cooldown <= 0 {
			cooldown = 30 * time.Second
		}
		failures := cfg.BreakerFailures
		g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        cfg.Name,
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			IsSuccessful: func(err error) bool {
				// A caller giving up is not a provider fault.
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logutil.GetLogger(context.Background()).Warn("circuit breaker state changed",
					zap.String("name", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
	}
	return g
}

func (g *guard) do(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}
	if g.breaker == nil {
		return fn(ctx)
	}
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Join(ErrUnavailable, err)
	}
	return res, err
}

type guardedGenerator struct {
	next  IGenerator
	guard *guard
}

// GuardGenerator applies timeout, rate limiting and circuit breaking to gen.
func GuardGenerator(gen IGenerator, cfg GuardConfig) IGenerator {
	if gen == nil {
		return nil
	}
	return &guardedGenerator{next: gen, guard: newGuard(cfg)}
}

func (g *guardedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	res, err := g.guard.do(ctx, func(ctx context.Context) (interface{}, error) {
		return g.next.Generate(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

type guardedEmbedder struct {
	next  IEmbedder
	guard *guard
}

func GuardEmbedder(e IEmbedder, cfg GuardConfig) IEmbedder {
	if e == nil {
		return nil
	}
	return &guardedEmbedder{next: e, guard: newGuard(cfg)}
}

func (g *guardedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	res, err := g.guard.do(ctx, func(ctx context.Context) (interface{}, error) {
		return g.next.Embed(ctx, text, taskType)
	})
	if err != nil {
		return nil, err
	}
	return res.([]float32), nil
}

func (g *guardedEmbedder) ModelName() string {
	return g.next.ModelName()
}
