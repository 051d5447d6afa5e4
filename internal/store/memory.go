package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lol-tracker/internal/errs"
	"lol-tracker/internal/models"
)

// MemoryStore is an in-process Store. Records are copied on the way in and out.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]models.UserRecord
	matches map[string]models.MatchRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]models.UserRecord),
		matches: make(map[string]models.MatchRecord),
	}
}

func (s *MemoryStore) GetUser(ctx context.Context, gametag string) (*models.UserRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("get user: %w: %v", errs.ErrStoreUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[gametag]
	if !ok {
		return nil, false, nil
	}
	user.Matches = append([]string(nil), user.Matches...)
	return &user, true, nil
}

func (s *MemoryStore) PutUser(ctx context.Context, user *models.UserRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("put user: %w: %v", errs.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Gametag]; exists {
		return fmt.Errorf("insert user %q: %w", user.Gametag, errs.ErrDuplicateKey)
	}
	stored := *user
	stored.Matches = append([]string(nil), user.Matches...)
	s.users[user.Gametag] = stored
	return nil
}

func (s *MemoryStore) UpdateUserMatches(ctx context.Context, gametag string, matchIDs []string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("update user: %w: %v", errs.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[gametag]
	if !ok {
		return fmt.Errorf("update user %q: %w", gametag, errs.ErrNotFound)
	}
	user.Matches = append([]string(nil), matchIDs...)
	user.UpdatedAt = time.Now()
	s.users[gametag] = user
	return nil
}

func (s *MemoryStore) GetMatch(ctx context.Context, matchID string) (*models.MatchRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("get match: %w: %v", errs.ErrStoreUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	match, ok := s.matches[matchID]
	if !ok {
		return nil, false, nil
	}
	return &match, true, nil
}

func (s *MemoryStore) PutManyMatches(ctx context.Context, matches []models.MatchRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("put matches: %w: %v", errs.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range matches {
		if _, exists := s.matches[m.MatchID()]; exists {
			continue
		}
		s.matches[m.MatchID()] = m
	}
	return nil
}

// Counts returns the number of stored users and matches.
func (s *MemoryStore) Counts() (users, matches int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), len(s.matches)
}
