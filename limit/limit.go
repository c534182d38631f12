package limit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Rule defines the throttling of one channel, or of the whole pool when
// passed to SetGlobal.
type Rule struct {
	// Channel is the channel key. Ignored for the global rule.
	Channel string

	// MaxConcurrency caps simultaneously running tasks. Zero means no
	// cap.
	MaxConcurrency int

	// RateLimit is the sustained number of task starts per second. Zero
	// disables rate limiting.
	RateLimit float64

	// RateBurst is the token bucket size. Defaults to 1 when RateLimit is
	// set.
	RateBurst int
}

// state tracks the runtime usage of one rule.
type state struct {
	rule    Rule
	limiter *rate.Limiter
	active  int
}

func newState(r Rule) *state {
	s := &state{rule: r}
	if r.RateLimit > 0 {
		burst := r.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(r.RateLimit), burst)
	}
	return s
}

func (s *state) full() bool {
	return s.rule.MaxConcurrency > 0 && s.active >= s.rule.MaxConcurrency
}

// Manager enforces channel and global rules. It is safe for concurrent
// use.
type Manager struct {
	mu     sync.Mutex
	rules  map[string]*state
	global *state
}

// NewManager creates a Manager with the given channel rules.
func NewManager(rules ...Rule) *Manager {
	m := &Manager{rules: make(map[string]*state, len(rules))}
	for _, r := range rules {
		m.rules[r.Channel] = newState(r)
	}
	return m
}

// Acquire reports whether a task of channel may start now. On success the
// active counts are incremented and the caller must call Release when the
// task ends. On a rate denial wait is the delay after which a retry is
// expected to pass; on a concurrency denial wait is zero.
func (m *Manager) Acquire(channel string) (ok bool, wait time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	states := make([]*state, 0, 2)
	if s := m.rules[channel]; s != nil {
		states = append(states, s)
	}
	if m.global != nil {
		states = append(states, m.global)
	}

	for _, s := range states {
		if s.full() {
			return false, 0
		}
	}

	now := time.Now()
	held := make([]*rate.Reservation, 0, len(states))
	release := func() {
		for _, r := range held {
			r.CancelAt(now)
		}
	}
	for _, s := range states {
		if s.limiter == nil {
			continue
		}
		r := s.limiter.ReserveN(now, 1)
		if !r.OK() {
			release()
			return false, 0
		}
		if d := r.DelayFrom(now); d > 0 {
			r.CancelAt(now)
			release()
			return false, d
		}
		held = append(held, r)
	}

	for _, s := range states {
		s.active++
	}
	return true, 0
}

// Release ends a task admitted by Acquire.
func (m *Manager) Release(channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s := m.rules[channel]; s != nil && s.active > 0 {
		s.active--
	}
	if m.global != nil && m.global.active > 0 {
		m.global.active--
	}
}

// SetRule adds or replaces the rule of r.Channel, keeping its active
// count.
func (m *Manager) SetRule(r Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := newState(r)
	if existing := m.rules[r.Channel]; existing != nil {
		s.active = existing.active
	}
	m.rules[r.Channel] = s
}

// RemoveRule drops the rule of channel.
func (m *Manager) RemoveRule(channel string) {
	m.mu.Lock()
	delete(m.rules, channel)
	m.mu.Unlock()
}

// SetGlobal sets the pool-wide rule, keeping the active count.
func (m *Manager) SetGlobal(r Rule) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r.Channel = ""
	s := newState(r)
	if m.global != nil {
		s.active = m.global.active
	}
	m.global = s
}

// ActiveCount returns the number of admitted, unreleased tasks of channel.
// Channels without a rule report zero.
func (m *Manager) ActiveCount(channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.rules[channel]; s != nil {
		return s.active
	}
	return 0
}

// GlobalActive returns the number of admitted tasks counted by the global
// rule, or zero when none is set.
func (m *Manager) GlobalActive() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.global != nil {
		return m.global.active
	}
	return 0
}
