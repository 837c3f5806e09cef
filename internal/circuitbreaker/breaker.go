// Package circuitbreaker guards calls to remote dependencies such as the
// payment gateway.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var ErrOpen = errors.New("circuit breaker is open")

type Config struct {
	Name string
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures int
	// Cooldown is how long the breaker stays open before a trial call.
	Cooldown time.Duration
	// HalfOpenRequests bounds concurrent trial calls.
	HalfOpenRequests int
	// IsFailure decides whether an error counts against the breaker.
	// Defaults to every non-nil error.
	IsFailure func(error) bool
}

// Breaker is a consecutive-failure circuit breaker.
type Breaker struct {
	cfg Config
	log *logrus.Logger
	now func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	inFlight int
	openedAt time.Time

	totalRequests  int64
	totalFailures  int64
	totalRejected  int64
	totalSuccesses int64
}

func New(cfg Config, log *logrus.Logger) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "unnamed"
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.HalfOpenRequests <= 0 {
		cfg.HalfOpenRequests = 1
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return err != nil }
	}
	return &Breaker{cfg: cfg, log: log, now: time.Now}
}

// Execute runs fn unless the breaker is open, in which case ErrOpen is
// returned without calling fn.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}

	err := fn(ctx)
	b.after(err)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			b.totalRejected++
			return ErrOpen
		}
		b.setState(StateHalfOpen)
	}

	if b.state == StateHalfOpen {
		if b.inFlight >= b.cfg.HalfOpenRequests {
			b.totalRejected++
			return ErrOpen
		}
		b.inFlight++
	}

	b.totalRequests++
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen && b.inFlight > 0 {
		b.inFlight--
	}

	if err != nil && b.cfg.IsFailure(err) {
		b.totalFailures++
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.cfg.MaxFailures {
			b.openedAt = b.now()
			b.setState(StateOpen)
		}
		return
	}

	b.totalSuccesses++
	b.failures = 0
	if b.state == StateHalfOpen {
		b.setState(StateClosed)
	}
}

func (b *Breaker) setState(next State) {
	if b.state == next {
		return
	}
	prev := b.state
	b.state = next
	if next != StateHalfOpen {
		b.inFlight = 0
	}
	if b.log != nil {
		b.log.WithFields(logrus.Fields{
			"circuit_breaker": b.cfg.Name,
			"from_state":      prev.String(),
			"to_state":        next.String(),
		}).Info("circuit breaker state changed")
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Metrics returns counters suitable for a health endpoint.
func (b *Breaker) Metrics() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	return map[string]interface{}{
		"name":            b.cfg.Name,
		"state":           b.state.String(),
		"failures":        b.failures,
		"total_requests":  b.totalRequests,
		"total_failures":  b.totalFailures,
		"total_successes": b.totalSuccesses,
		"total_rejected":  b.totalRejected,
	}
}
