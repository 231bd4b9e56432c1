package app

import "sync"

const feedBuffer = 8

// Feed fans out full snapshots of a value to any number of subscribers.
// Each subscriber first receives the latest value, then every published one
// in order. A subscriber that falls behind skips superseded snapshots but is
// always left holding the most recent.
type Feed[T any] struct {
	mu          sync.Mutex
	last        T
	subscribers map[chan T]struct{}
}

func NewFeed[T any](initial T) *Feed[T] {
	return &Feed[T]{
		last:        initial,
		subscribers: make(map[chan T]struct{}),
	}
}

// Subscribe returns a channel of snapshots and an idempotent cancel function.
// After cancel returns the channel is drained and closed, so nothing more is
// received from it. Cancel may be called from the goroutine reading the channel.
func (f *Feed[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, feedBuffer)

	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	ch <- f.last
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subscribers[ch]; !ok {
			return
		}
		delete(f.subscribers, ch)
	drain:
		for {
			select {
			case <-ch:
			default:
				break drain
			}
		}
		close(ch)
	}
	return ch, cancel
}

// Publish records v as the latest value and delivers it without blocking.
func (f *Feed[T]) Publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.last = v
	for ch := range f.subscribers {
		select {
		case ch <- v:
		default:
			// Full buffer: drop the oldest snapshot, the newest one supersedes it.
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}

// Last returns the most recently published value.
func (f *Feed[T]) Last() T {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// Subscribers reports how many subscriptions are active.
func (f *Feed[T]) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}
