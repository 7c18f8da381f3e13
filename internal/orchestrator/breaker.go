package orchestrator

import (
	"sync"
	"time"
)

// breakerState is one of the standard three circuit breaker states.
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// breakerConfig tunes when a breaker opens and how long it stays open
// before allowing a half-open probe.
type breakerConfig struct {
	failureThreshold int
	cooldown         time.Duration
}

var defaultBreakerConfig = breakerConfig{failureThreshold: 5, cooldown: 30 * time.Second}

type breakerKey struct {
	component   string
	operationID string
}

// breakerEntry tracks one (component, operationId) circuit.
type breakerEntry struct {
	mu       sync.Mutex
	state    breakerState
	failures int
	openedAt time.Time
}

// allow reports whether a call may proceed, transitioning an OPEN breaker to
// HALF_OPEN once the cooldown has elapsed.
func (e *breakerEntry) allow(cooldown time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case breakerOpen:
		if time.Since(e.openedAt) < cooldown {
			return false
		}
		e.state = breakerHalfOpen
		return true
	default:
		return true
	}
}

func (e *breakerEntry) recordSuccess() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = breakerClosed
	e.failures = 0
}

// recordFailure counts a failure, opening the breaker once the count reaches
// threshold, or immediately re-opening a half-open probe that failed.
func (e *breakerEntry) recordFailure(threshold int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == breakerHalfOpen {
		e.state = breakerOpen
		e.openedAt = time.Now()
		return
	}
	e.failures++
	if e.failures >= threshold {
		e.state = breakerOpen
		e.openedAt = time.Now()
	}
}

// forceOpen opens the breaker unconditionally, reporting whether it was
// already open (a no-op transition).
func (e *breakerEntry) forceOpen() (alreadyOpen bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	alreadyOpen = e.state == breakerOpen
	e.state = breakerOpen
	e.openedAt = time.Now()
	return alreadyOpen
}

func (e *breakerEntry) String() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.String()
}

// breakerManager owns every (component, operationId) breaker.
type breakerManager struct {
	mu      sync.Mutex
	entries map[breakerKey]*breakerEntry
	config  breakerConfig
}

func newBreakerManager(cfg breakerConfig) *breakerManager {
	return &breakerManager{entries: make(map[breakerKey]*breakerEntry), config: cfg}
}

func (m *breakerManager) entry(component, operationID string) *breakerEntry {
	k := breakerKey{component, operationID}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[k]
	if !ok {
		e = &breakerEntry{state: breakerClosed}
		m.entries[k] = e
	}
	return e
}

// state returns the current breaker state for component/operationID, or
// "closed" if no breaker has been allocated yet.
func (m *breakerManager) state(component, operationID string) string {
	return m.entry(component, operationID).String()
}
