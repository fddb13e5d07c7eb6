package engine

import (
	"sort"
	"sync"
	"time"
)

// circuitStore is a consecutive-failure breaker per task name. After trip
// failures the task is skipped for base * 2^(fails-trip), capped at max. A
// success closes it.
type circuitStore struct {
	mu sync.Mutex
	m  map[string]*circuitState
}

type circuitState struct {
	fails     int
	openUntil time.Time
}

func (c *circuitStore) isOpen(now time.Time, name string) (bool, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.m[name]
	if st == nil || st.openUntil.IsZero() || !now.Before(st.openUntil) {
		return false, time.Time{}
	}
	return true, st.openUntil
}

func (c *circuitStore) record(now time.Time, name string, cfg Config, err error) {
	if cfg.CircuitTripFailures < 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = map[string]*circuitState{}
	}
	st := c.m[name]
	if st == nil {
		st = &circuitState{}
		c.m[name] = st
	}
	if err == nil {
		st.fails = 0
		st.openUntil = time.Time{}
		return
	}
	st.fails++
	if st.fails < cfg.CircuitTripFailures {
		return
	}
	d := cfg.CircuitBaseDelay
	for i := cfg.CircuitTripFailures; i < st.fails && d < cfg.CircuitMaxDelay; i++ {
		d *= 2
	}
	st.openUntil = now.Add(min(d, cfg.CircuitMaxDelay))
}

func (c *circuitStore) open(now time.Time) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for name, st := range c.m {
		if !st.openUntil.IsZero() && now.Before(st.openUntil) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
