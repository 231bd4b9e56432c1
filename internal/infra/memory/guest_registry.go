package memory

import (
	"context"
	"sync"

	"wedding-quiz-service/internal/app"
	"wedding-quiz-service/internal/domain"
)

type roster struct {
	guests map[string]domain.Guest
	feed   *app.Feed[int]
}

// GuestRegistry is an in-memory implementation of app.GuestRegistry.
type GuestRegistry struct {
	mu      sync.Mutex
	rosters map[string]*roster
}

func NewGuestRegistry() *GuestRegistry {
	return &GuestRegistry{rosters: make(map[string]*roster)}
}

func (r *GuestRegistry) Register(_ context.Context, sessionID string, guest domain.Guest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ro := r.rosterLocked(sessionID)
	if existing, ok := ro.guests[guest.GuestID]; ok {
		existing.Nickname = guest.Nickname
		ro.guests[guest.GuestID] = existing
		return nil
	}
	ro.guests[guest.GuestID] = guest
	ro.feed.Publish(len(ro.guests))
	return nil
}

func (r *GuestRegistry) Guest(_ context.Context, sessionID, guestID string) (domain.Guest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ro, ok := r.rosters[sessionID]; ok {
		if guest, ok := ro.guests[guestID]; ok {
			return guest, nil
		}
	}
	return domain.Guest{}, domain.ErrGuestNotRegistered
}

func (r *GuestRegistry) Count(_ context.Context, sessionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ro, ok := r.rosters[sessionID]; ok {
		return len(ro.guests), nil
	}
	return 0, nil
}

func (r *GuestRegistry) SubscribeCount(_ context.Context, sessionID string) (<-chan int, func(), error) {
	r.mu.Lock()
	ro := r.rosterLocked(sessionID)
	r.mu.Unlock()
	ch, cancel := ro.feed.Subscribe()
	return ch, cancel, nil
}

func (r *GuestRegistry) rosterLocked(sessionID string) *roster {
	if ro, ok := r.rosters[sessionID]; ok {
		return ro
	}
	ro := &roster{guests: make(map[string]domain.Guest), feed: app.NewFeed(0)}
	r.rosters[sessionID] = ro
	return ro
}
