package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"wedding-quiz-service/internal/domain"
)

func TestSessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, client := newServer(t)
	store := NewSessionStore(client, time.Hour)

	if err := store.Save(ctx, domain.DefaultSession("s1")); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected save before create to fail, got %v", err)
	}
	if _, err := store.Get(ctx, "s1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	started := time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC)
	session := domain.DefaultSession("s1")
	session.QuizID = "wedding"
	session.TotalQuestions = 5
	if err := store.Create(ctx, session); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !mr.Exists("quiz:session:s1") {
		t.Fatalf("expected redis key to be set")
	}
	if ttl := mr.TTL("quiz:session:s1"); ttl != time.Hour {
		t.Fatalf("expected ttl 1h, got %v", ttl)
	}

	session.Status = domain.StatusPlaying
	session.StartedAt = &started
	session.QuestionStartedAt = map[int]time.Time{1: started}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusPlaying || got.StartedAt == nil || !got.StartedAt.Equal(started) {
		t.Fatalf("unexpected session %+v", got)
	}
	if start, ok := got.QuestionStart(1); !ok || !start.Equal(started) {
		t.Fatalf("expected question start to survive encoding, got %v", got.QuestionStartedAt)
	}
}

func TestSessionStoreRelaysAcrossStores(t *testing.T) {
	ctx := context.Background()
	_, client := newServer(t)
	operator := NewSessionStore(client, time.Hour)
	screen := NewSessionStore(client, time.Hour)

	updates, cancel, err := screen.Subscribe(ctx, "s1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	first := waitFor(t, updates, func(domain.Session) bool { return true })
	if first.Status != domain.StatusWaiting || first.CurrentQuestion != 1 {
		t.Fatalf("expected default session before create, got %+v", first)
	}

	session := domain.DefaultSession("s1")
	_ = operator.Create(ctx, session)
	session.Status = domain.StatusPlaying
	for q := 1; q <= 3; q++ {
		session.CurrentQuestion = q
		session.UpdatedAt = time.Now()
		if err := operator.Save(ctx, session); err != nil {
			t.Fatalf("save q%d: %v", q, err)
		}
	}

	last := 0
	waitFor(t, updates, func(s domain.Session) bool {
		if s.CurrentQuestion < last {
			t.Fatalf("snapshot went backwards: q%d after q%d", s.CurrentQuestion, last)
		}
		last = s.CurrentQuestion
		return s.Status == domain.StatusPlaying && s.CurrentQuestion == 3
	})

	cancel()
	cancel()
	if n := screen.relay.active(); n != 0 {
		t.Fatalf("expected relay to release its subscription, %d left", n)
	}
	if _, ok := <-updates; ok {
		t.Fatalf("expected channel closed after cancel")
	}
}

func TestSessionStoreSharesSubscription(t *testing.T) {
	ctx := context.Background()
	_, client := newServer(t)
	store := NewSessionStore(client, 0)

	_, cancelA, _ := store.Subscribe(ctx, "s1")
	_, cancelB, _ := store.Subscribe(ctx, "s1")
	if n := store.relay.active(); n != 1 {
		t.Fatalf("expected one shared topic, got %d", n)
	}
	cancelA()
	if n := store.relay.active(); n != 1 {
		t.Fatalf("expected topic kept for remaining subscriber, got %d", n)
	}
	cancelB()
	if n := store.relay.active(); n != 0 {
		t.Fatalf("expected topic released, got %d", n)
	}
}
