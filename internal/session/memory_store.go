package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/tutorbot/pkg/models"
)

// ProfileStore persists learner profiles.
// Get returns a fresh profile with Version 0 for an unknown user.
// Save fails with ErrConflict when the stored version differs from p.Version
// and updates p's Version and UpdatedAt on success.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*models.UserProfile, error)
	Save(ctx context.Context, p *models.UserProfile) error
}

// ProfileLister is implemented by stores that can enumerate learners
type ProfileLister interface {
	List(ctx context.Context) ([]*models.UserProfile, error)
}

// MemoryStore keeps profiles in process memory. It is used by the chat
// REPL and in tests, and follows the same version rules as the real stores.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]*models.UserProfile
	now      func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]*models.UserProfile),
		now:      time.Now,
	}
}

// Get returns a copy of the stored profile
func (s *MemoryStore) Get(ctx context.Context, userID string) (*models.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.profiles[userID]; ok {
		return p.Clone(), nil
	}
	return models.NewUserProfile(userID), nil
}

// Save stores p if its version matches
func (s *MemoryStore) Save(ctx context.Context, p *models.UserProfile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.profiles[p.UserID]
	var current int64
	if ok {
		current = stored.Version
	}
	if current != p.Version {
		return fmt.Errorf("user %s: stored version %d, have %d: %w", p.UserID, current, p.Version, ErrConflict)
	}
	if ok && stored.SameContent(p) {
		return nil
	}

	now := s.now()
	if !ok {
		p.CreatedAt = now
	} else {
		p.CreatedAt = stored.CreatedAt
	}
	p.Version++
	p.UpdatedAt = now

	next := p.Clone()
	if ok {
		// scores and error counters are merged, never dropped
		for cat, v := range stored.Scores {
			if _, present := next.Scores[cat]; !present {
				next.Scores[cat] = v
			}
		}
		for cat, v := range stored.ErrorCategories {
			if _, present := next.ErrorCategories[cat]; !present {
				next.ErrorCategories[cat] = v
			}
		}
	}
	s.profiles[p.UserID] = next
	return nil
}

// List returns every stored profile ordered by user id
func (s *MemoryStore) List(ctx context.Context) ([]*models.UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.UserProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// Stalled returns learners in the middle of a lesson whose profile was last
// saved before the given time
func (s *MemoryStore) Stalled(ctx context.Context, before time.Time) ([]*models.UserProfile, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*models.UserProfile
	for _, p := range all {
		if p.State != models.StateIdle && p.UpdatedAt.Before(before) {
			out = append(out, p)
		}
	}
	return out, nil
}

// CountByLevel returns the number of learners at each level
func (s *MemoryStore) CountByLevel(ctx context.Context) (map[models.Level]int, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[models.Level]int)
	for _, p := range all {
		counts[p.Level]++
	}
	return counts, nil
}
