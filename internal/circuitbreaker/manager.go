package circuitbreaker

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Manager owns the named breakers of one process.
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	defaults Settings
	logger   *logrus.Logger
}

// NewManager returns a manager whose breakers start from defaults. The
// defaults' OnStateChange is shared by every breaker.
func NewManager(defaults Settings, logger *logrus.Logger) *Manager {
	return &Manager{
		breakers: make(map[string]*Breaker),
		defaults: defaults,
		logger:   logger,
	}
}

// Breaker returns the breaker registered under name, creating it on first use.
func (m *Manager) Breaker(name string) *Breaker {
	m.mu.RLock()
	b, ok := m.breakers[name]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[name]; ok {
		return b
	}

	settings := m.defaults
	settings.Name = name
	b = New(settings, m.logger)
	m.breakers[name] = b

	m.logger.WithFields(logrus.Fields{
		"circuit_breaker": name,
		"max_failures":    b.settings.MaxFailures,
		"open_timeout":    b.settings.OpenTimeout.String(),
	}).Info("Circuit breaker created")
	return b
}

// Snapshots lists every breaker ordered by name.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Snapshot, 0, len(m.breakers))
	for _, b := range m.breakers {
		out = append(out, b.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AnyOpen reports whether some breaker currently rejects calls.
func (m *Manager) AnyOpen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.breakers {
		if b.State() == StateOpen {
			return true
		}
	}
	return false
}

func (m *Manager) Reset(name string) bool {
	m.mu.RLock()
	b, ok := m.breakers[name]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	b.Reset()
	m.logger.WithField("circuit_breaker", name).Info("Circuit breaker reset")
	return true
}
