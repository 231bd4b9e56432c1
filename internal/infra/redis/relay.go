package redis

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"wedding-quiz-service/internal/app"
)

const reloadTimeout = 5 * time.Second

// relay shares one Redis pub/sub subscription per topic between all local
// subscribers. Notifications carry no state: every message triggers a reload
// of the snapshot, which is then fanned out through an app.Feed.
type relay[T any] struct {
	client *redis.Client

	opening singleflight.Group

	mu     sync.Mutex
	topics map[string]*topic[T]
}

type topic[T any] struct {
	feed   *app.Feed[T]
	pubsub *redis.PubSub
	refs   int
	done   chan struct{}
}

func newRelay[T any](client *redis.Client) *relay[T] {
	return &relay[T]{client: client, topics: make(map[string]*topic[T])}
}

// subscribe joins the topic identified by key, which listens on channel and
// rebuilds its snapshot with load. The Redis subscription is confirmed before
// the first load so no write between the two is missed. Topics are opened
// outside r.mu; concurrent first subscribers of a key share one open.
func (r *relay[T]) subscribe(ctx context.Context, key, channel string, load func(context.Context) (T, error)) (<-chan T, func(), error) {
	for {
		r.mu.Lock()
		if tp, ok := r.topics[key]; ok {
			tp.refs++
			r.mu.Unlock()
			return r.join(key, tp)
		}
		r.mu.Unlock()

		_, err, _ := r.opening.Do(key, func() (any, error) {
			r.mu.Lock()
			if tp, ok := r.topics[key]; ok {
				r.mu.Unlock()
				return tp, nil
			}
			r.mu.Unlock()

			tp, err := r.open(ctx, channel, load)
			if err != nil {
				return nil, err
			}
			r.mu.Lock()
			r.topics[key] = tp
			r.mu.Unlock()
			return tp, nil
		})
		if err != nil {
			return nil, nil, err
		}
		// The topic may be released again before this caller joins it; look it up once more.
	}
}

func (r *relay[T]) join(key string, tp *topic[T]) (<-chan T, func(), error) {
	ch, cancelFeed := tp.feed.Subscribe()
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			cancelFeed()
			r.release(key, tp)
		})
	}
	return ch, cancel, nil
}

func (r *relay[T]) open(ctx context.Context, channel string, load func(context.Context) (T, error)) (*topic[T], error) {
	pubsub := r.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	initial, err := load(ctx)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	tp := &topic[T]{
		feed:   app.NewFeed(initial),
		pubsub: pubsub,
		done:   make(chan struct{}),
	}
	go tp.run(channel, load)
	return tp, nil
}

func (tp *topic[T]) run(channel string, load func(context.Context) (T, error)) {
	defer close(tp.done)
	for range tp.pubsub.Channel() {
		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		v, err := load(ctx)
		cancel()
		if err != nil {
			log.Printf("relay %s: reload failed: %v", channel, err)
			continue
		}
		tp.feed.Publish(v)
	}
}

func (r *relay[T]) release(key string, tp *topic[T]) {
	r.mu.Lock()
	tp.refs--
	last := tp.refs == 0
	if last && r.topics[key] == tp {
		delete(r.topics, key)
	}
	r.mu.Unlock()

	if last {
		_ = tp.pubsub.Close()
		<-tp.done
	}
}

// active reports how many topics hold a Redis subscription.
func (r *relay[T]) active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics)
}
