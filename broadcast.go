package mpdutils

import (
	"context"
	"sync"

	"github.com/JakeStanger/go-mpd-utils/mpd"
)

// DefaultEventBuffer is the per-subscriber buffer used when no explicit
// size is configured.
const DefaultEventBuffer = 32

// Broadcaster fans events out to any number of subscribers. Each
// subscriber has its own cursor and bounded buffer: publishing never
// blocks, and a subscriber that falls behind loses the oldest events
// and receives a LaggedError marking the gap. Events published before a
// subscription existed are never observed by it.
type Broadcaster struct {
	limit int

	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewBroadcaster creates a broadcaster whose subscribers buffer up to
// limit events each. A non-positive limit selects DefaultEventBuffer.
func NewBroadcaster(limit int) *Broadcaster {
	if limit <= 0 {
		limit = DefaultEventBuffer
	}
	return &Broadcaster{
		limit: limit,
		subs:  make(map[*Subscription]struct{}),
	}
}

// Subscribe registers a new subscriber. It only observes events
// published after this call.
func (b *Broadcaster) Subscribe() *Subscription {
	s := &Subscription{
		b:      b,
		limit:  b.limit,
		notify: make(chan struct{}, 1),
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Publish delivers ev to every current subscriber in arrival order.
func (b *Broadcaster) Publish(ev mpd.Event) {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.push(ev)
	}
}

func (b *Broadcaster) remove(s *Subscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

// Subscription is one independently-cursored view of a broadcaster's
// event feed. It is intended for a single consuming goroutine; create
// one subscription per consumer.
type Subscription struct {
	b      *Broadcaster
	limit  int
	notify chan struct{}

	mu     sync.Mutex
	queue  []mpd.Event
	missed int
	closed bool
}

func (s *Subscription) push(ev mpd.Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if len(s.queue) >= s.limit {
		s.queue = s.queue[1:]
		s.missed++
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Recv returns the next buffered event, suspending until one arrives.
// If events were dropped since the last call it returns a *LaggedError
// instead, consuming the gap.
func (s *Subscription) Recv(ctx context.Context) (mpd.Event, error) {
	for {
		s.mu.Lock()
		if s.missed > 0 {
			n := s.missed
			s.missed = 0
			s.mu.Unlock()
			return mpd.Event{}, &LaggedError{Missed: n}
		}
		if len(s.queue) > 0 {
			ev := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return ev, nil
		}
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return mpd.Event{}, ErrSubscriptionClosed
		}

		select {
		case <-s.notify:
		case <-ctx.Done():
			return mpd.Event{}, ctx.Err()
		}
	}
}

// Close detaches the subscription from its broadcaster. Buffered events
// remain readable; once drained, Recv returns ErrSubscriptionClosed.
func (s *Subscription) Close() {
	s.b.remove(s)

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}
