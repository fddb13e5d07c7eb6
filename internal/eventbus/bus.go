package eventbus

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Event is a lightweight, in-memory signal used to decouple components.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Subscribers MUST use buffered channels.
//   - Slow subscribers may drop events (bounded backpressure).
//
// Type is dot separated ("agenda-item.added", "job.failed", "log.alert").
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
	// SubscribeMatch only delivers events whose Type matches the glob
	// pattern ("agenda-item.*", "*.added"). An empty pattern matches all.
	SubscribeMatch(pattern string, buffer int) (ch <-chan Event, unsubscribe func(), err error)
}

// New returns a simple in-memory fanout bus. It is constructed by the
// composition root and passed in; there is no package-level instance.
//
// It does not own any background goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]*subscriber{}}
}

type subscriber struct {
	ch      chan Event
	pattern string
	dropped atomic.Uint64
}

func (s *subscriber) wants(typ string) bool {
	if s.pattern == "" {
		return true
	}
	ok, err := doublestar.Match(s.pattern, typ)
	return err == nil && ok
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]*subscriber
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Snapshot subscribers so Publish doesn't hold locks while attempting sends.
	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		if !s.wants(e.Type) {
			continue
		}
		// Non-blocking delivery. A concurrent unsubscribe may close the
		// channel; recover from the send panic.
		func() {
			defer func() { _ = recover() }()
			select {
			case s.ch <- e:
			default:
				s.dropped.Add(1)
			}
		}()
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	ch, unsub, _ := b.subscribe("", buffer)
	return ch, unsub
}

func (b *memBus) SubscribeMatch(pattern string, buffer int) (<-chan Event, func(), error) {
	if pattern != "" && !doublestar.ValidatePattern(pattern) {
		return nil, nil, doublestar.ErrBadPattern
	}
	return b.subscribe(pattern, buffer)
}

func (b *memBus) subscribe(pattern string, buffer int) (<-chan Event, func(), error) {
	if buffer <= 0 {
		buffer = 8
	}
	s := &subscriber{ch: make(chan Event, buffer), pattern: pattern}
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(s.ch)
		})
	}
	return s.ch, unsub, nil
}
