package display

import (
	"sync"
	"sync/atomic"
)

// Surface receives every rendered plot
type Surface interface {
	Draw(plot Plot)
}

// Broadcaster fans plots out to subscribers. Slow subscribers lose plots
// rather than stalling the render loop.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Plot // Protected by mu
	next    uint64
	dropped atomic.Uint64
}

// NewBroadcaster creates a broadcaster with no subscribers
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]chan Plot)}
}

// Subscribe returns a plot channel and a cancel func that closes it
func (b *Broadcaster) Subscribe(buffer int) (<-chan Plot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Plot, buffer)

	b.mu.Lock()
	key := b.next
	b.next++
	b.subs[key] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, key)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Draw implements Surface
func (b *Broadcaster) Draw(plot Plot) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- plot:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of active subscribers
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns the number of plots not delivered to a full subscriber
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}
