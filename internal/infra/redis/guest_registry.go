package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"wedding-quiz-service/internal/domain"
)

// GuestRegistry keeps a session's roster in the hash quiz:guests:{sessionID},
// one JSON-encoded guest per field.
type GuestRegistry struct {
	client *redis.Client
	ttl    time.Duration
	relay  *relay[int]
}

func NewGuestRegistry(client *redis.Client, ttl time.Duration) *GuestRegistry {
	return &GuestRegistry{
		client: client,
		ttl:    ttl,
		relay:  newRelay[int](client),
	}
}

// Register adds the guest, or refreshes the nickname of a known guest while
// keeping the original join time. Only new guests notify count subscribers.
func (r *GuestRegistry) Register(ctx context.Context, sessionID string, guest domain.Guest) error {
	key := r.key(sessionID)
	existing, err := r.Guest(ctx, sessionID, guest.GuestID)
	switch {
	case err == nil:
		existing.Nickname = guest.Nickname
		guest = existing
	case !errors.Is(err, domain.ErrGuestNotRegistered):
		return err
	}

	data, err := json.Marshal(guest)
	if err != nil {
		return fmt.Errorf("encode guest: %w", err)
	}
	var added *redis.IntCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		added = pipe.HSet(ctx, key, guest.GuestID, data)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if added.Val() > 0 {
		if err := r.client.Publish(ctx, r.channel(sessionID), guest.GuestID).Err(); err != nil {
			log.Printf("guests %s: notify failed: %v", sessionID, err)
		}
	}
	return nil
}

func (r *GuestRegistry) Guest(ctx context.Context, sessionID, guestID string) (domain.Guest, error) {
	data, err := r.client.HGet(ctx, r.key(sessionID), guestID).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Guest{}, domain.ErrGuestNotRegistered
	}
	if err != nil {
		return domain.Guest{}, err
	}
	var guest domain.Guest
	if err := json.Unmarshal(data, &guest); err != nil {
		return domain.Guest{}, fmt.Errorf("decode guest %s: %w", guestID, err)
	}
	return guest, nil
}

func (r *GuestRegistry) Count(ctx context.Context, sessionID string) (int, error) {
	n, err := r.client.HLen(ctx, r.key(sessionID)).Result()
	return int(n), err
}

func (r *GuestRegistry) SubscribeCount(ctx context.Context, sessionID string) (<-chan int, func(), error) {
	return r.relay.subscribe(ctx, sessionID, r.channel(sessionID), func(ctx context.Context) (int, error) {
		return r.Count(ctx, sessionID)
	})
}

func (r *GuestRegistry) key(sessionID string) string {
	return "quiz:guests:" + sessionID
}

func (r *GuestRegistry) channel(sessionID string) string {
	return r.key(sessionID) + ":events"
}
