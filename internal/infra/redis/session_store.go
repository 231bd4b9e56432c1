package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"wedding-quiz-service/internal/domain"
)

// SessionStore keeps each session as a JSON document under
// quiz:session:{id}. Every write publishes on quiz:session:{id}:events in
// the same transaction, so all processes observe the operator's writes in
// the order Redis applied them.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	relay  *relay[domain.Session]
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client: client,
		ttl:    ttl,
		relay:  newRelay[domain.Session](client),
	}
}

func (s *SessionStore) Create(ctx context.Context, session domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(session.ID), data, s.ttl)
		pipe.Publish(ctx, s.channel(session.ID), session.UpdatedAt.UnixNano())
		return nil
	})
	return err
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}
	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return domain.Session{}, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return session, nil
}

// Save replaces an existing session. The key is watched so a session that
// expired or was never created is reported instead of silently recreated.
func (s *SessionStore) Save(ctx context.Context, session domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	key := s.key(session.ID)
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrSessionNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			pipe.Publish(ctx, s.channel(session.ID), session.UpdatedAt.UnixNano())
			return nil
		})
		return err
	}, key)
}

func (s *SessionStore) Subscribe(ctx context.Context, sessionID string) (<-chan domain.Session, func(), error) {
	return s.relay.subscribe(ctx, sessionID, s.channel(sessionID), func(ctx context.Context) (domain.Session, error) {
		session, err := s.Get(ctx, sessionID)
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.DefaultSession(sessionID), nil
		}
		return session, err
	})
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}

func (s *SessionStore) channel(sessionID string) string {
	return s.key(sessionID) + ":events"
}
