package memory

import (
	"context"
	"sync"

	"wedding-quiz-service/internal/app"
	"wedding-quiz-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore.
// Subscribers only see writes made through this process.
type SessionStore struct {
	mu      sync.Mutex
	records map[string]*sessionRecord
}

type sessionRecord struct {
	session domain.Session
	created bool
	feed    *app.Feed[domain.Session]
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		records: make(map[string]*sessionRecord),
	}
}

func (s *SessionStore) Create(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recordLocked(session.ID)
	rec.session = session.Clone()
	rec.created = true
	rec.feed.Publish(session.Clone())
	return nil
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[sessionID]
	if !ok || !rec.created {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return rec.session.Clone(), nil
}

func (s *SessionStore) Save(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[session.ID]
	if !ok || !rec.created {
		return domain.ErrSessionNotFound
	}
	rec.session = session.Clone()
	rec.feed.Publish(session.Clone())
	return nil
}

func (s *SessionStore) Subscribe(_ context.Context, sessionID string) (<-chan domain.Session, func(), error) {
	s.mu.Lock()
	rec := s.recordLocked(sessionID)
	s.mu.Unlock()
	ch, cancel := rec.feed.Subscribe()
	return ch, cancel, nil
}

// recordLocked returns the record for id, creating a placeholder that
// publishes domain.DefaultSession until the session is created.
func (s *SessionStore) recordLocked(id string) *sessionRecord {
	if rec, ok := s.records[id]; ok {
		return rec
	}
	rec := &sessionRecord{feed: app.NewFeed(domain.DefaultSession(id))}
	s.records[id] = rec
	return rec
}
