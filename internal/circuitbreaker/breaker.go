// Package circuitbreaker stops calls to a failing dependency for a while so
// that request handlers do not queue up behind it.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
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

// ErrOpen is returned without calling the guarded function while the
// breaker rejects traffic.
var ErrOpen = errors.New("circuit breaker is open")

const (
	defaultMaxFailures      = 5
	defaultOpenTimeout      = 30 * time.Second
	defaultHalfOpenRequests = 1

	maxMaxFailures      = 1000
	maxOpenTimeout      = 10 * time.Minute
	maxHalfOpenRequests = 100

	stateChangeCallbackTimeout = 5 * time.Second
)

type Settings struct {
	Name string
	// MaxFailures consecutive failures open the breaker.
	MaxFailures int
	// OpenTimeout is how long the breaker stays open before it lets trial
	// calls through.
	OpenTimeout time.Duration
	// HalfOpenRequests bounds the trial calls allowed while half-open.
	HalfOpenRequests int
	OnStateChange    func(name string, from, to State)
}

// Snapshot is a point-in-time view of a breaker, shaped for JSON output.
type Snapshot struct {
	Name             string    `json:"name"`
	State            string    `json:"state"`
	Failures         int       `json:"failures"`
	TotalRequests    int64     `json:"total_requests"`
	TotalFailures    int64     `json:"total_failures"`
	TotalSuccesses   int64     `json:"total_successes"`
	TotalRejected    int64     `json:"total_rejected"`
	StateChanges     int64     `json:"state_changes"`
	MaxFailures      int       `json:"max_failures"`
	OpenTimeout      string    `json:"open_timeout"`
	HalfOpenRequests int       `json:"half_open_requests"`
	LastFailure      time.Time `json:"last_failure,omitempty"`
	LastStateChange  time.Time `json:"last_state_change,omitempty"`
}

type Breaker struct {
	settings Settings
	logger   *logrus.Logger

	mu              sync.Mutex
	state           State
	failures        int
	trials          int
	lastFailure     time.Time
	lastStateChange time.Time

	totalRequests  int64
	totalFailures  int64
	totalSuccesses int64
	totalRejected  int64
	stateChanges   int64

	now func() time.Time
}

func New(settings Settings, logger *logrus.Logger) *Breaker {
	settings = sanitize(settings, logger)
	return &Breaker{
		settings: settings,
		logger:   logger,
		state:    StateClosed,
		now:      time.Now,
	}
}

func sanitize(s Settings, logger *logrus.Logger) Settings {
	if s.Name == "" {
		s.Name = "unnamed"
		logger.Warn("Circuit breaker created without name, using 'unnamed'")
	}
	log := logger.WithField("circuit_breaker", s.Name)

	switch {
	case s.MaxFailures <= 0:
		log.WithField("invalid_value", s.MaxFailures).Warn("Invalid MaxFailures value, using default")
		s.MaxFailures = defaultMaxFailures
	case s.MaxFailures > maxMaxFailures:
		log.WithField("invalid_value", s.MaxFailures).Warn("MaxFailures too high, capping at maximum")
		s.MaxFailures = maxMaxFailures
	}

	switch {
	case s.OpenTimeout <= 0:
		log.WithField("invalid_value", s.OpenTimeout.String()).Warn("Invalid OpenTimeout value, using default")
		s.OpenTimeout = defaultOpenTimeout
	case s.OpenTimeout > maxOpenTimeout:
		log.WithField("invalid_value", s.OpenTimeout.String()).Warn("OpenTimeout too high, capping at maximum")
		s.OpenTimeout = maxOpenTimeout
	}

	switch {
	case s.HalfOpenRequests <= 0:
		log.WithField("invalid_value", s.HalfOpenRequests).Warn("Invalid HalfOpenRequests value, using default")
		s.HalfOpenRequests = defaultHalfOpenRequests
	case s.HalfOpenRequests > maxHalfOpenRequests:
		log.WithField("invalid_value", s.HalfOpenRequests).Warn("HalfOpenRequests too high, capping at maximum")
		s.HalfOpenRequests = maxHalfOpenRequests
	}
	return s
}

func (b *Breaker) Name() string {
	return b.settings.Name
}

// Execute runs fn unless the breaker is open. A cancelled context counts as
// neither a success nor a failure.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case err == nil:
		b.totalSuccesses++
		b.failures = 0
		if b.state == StateHalfOpen {
			b.setState(StateClosed)
		}
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		if b.state == StateHalfOpen {
			b.trials--
		}
	default:
		b.totalFailures++
		b.failures++
		b.lastFailure = b.now()
		if b.state == StateHalfOpen || b.failures >= b.settings.MaxFailures {
			b.setState(StateOpen)
		}
	}
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.lastFailure) < b.settings.OpenTimeout {
			b.totalRejected++
			return ErrOpen
		}
		b.setState(StateHalfOpen)
	}
	if b.state == StateHalfOpen {
		if b.trials >= b.settings.HalfOpenRequests {
			b.totalRejected++
			return ErrOpen
		}
		b.trials++
	}
	b.totalRequests++
	return nil
}

// setState must be called with mu held.
func (b *Breaker) setState(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.trials = 0
	b.stateChanges++
	b.lastStateChange = b.now()

	b.logger.WithFields(logrus.Fields{
		"circuit_breaker": b.settings.Name,
		"from_state":      from.String(),
		"to_state":        to.String(),
	}).Info("Circuit breaker state changed")

	if b.settings.OnStateChange != nil {
		go b.notify(from, to)
	}
}

func (b *Breaker) notify(from, to State) {
	log := b.logger.WithFields(logrus.Fields{
		"circuit_breaker": b.settings.Name,
		"from_state":      from.String(),
		"to_state":        to.String(),
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				log.WithField("panic", r).Error("Circuit breaker state change callback panicked")
			}
		}()
		b.settings.OnStateChange(b.settings.Name, from, to)
	}()

	select {
	case <-done:
	case <-time.After(stateChangeCallbackTimeout):
		log.Warn("Circuit breaker state change callback timed out")
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:             b.settings.Name,
		State:            b.state.String(),
		Failures:         b.failures,
		TotalRequests:    b.totalRequests,
		TotalFailures:    b.totalFailures,
		TotalSuccesses:   b.totalSuccesses,
		TotalRejected:    b.totalRejected,
		StateChanges:     b.stateChanges,
		MaxFailures:      b.settings.MaxFailures,
		OpenTimeout:      b.settings.OpenTimeout.String(),
		HalfOpenRequests: b.settings.HalfOpenRequests,
		LastFailure:      b.lastFailure,
		LastStateChange:  b.lastStateChange,
	}
}

func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setState(StateClosed)
	b.failures = 0
	b.lastFailure = time.Time{}
}

func (b *Breaker) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fmt.Sprintf("Breaker(name=%s, state=%s, failures=%d/%d)",
		b.settings.Name, b.state, b.failures, b.settings.MaxFailures)
}
