package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/fairyhunter13/page-stats-service/internal/model"
)

type record struct {
	posts     int64
	likes     int64
	followers int64
}

func (r *record) counter(field model.Field) *int64 {
	switch field {
	case model.FieldPost:
		return &r.posts
	case model.FieldLike:
		return &r.likes
	case model.FieldFollower:
		return &r.followers
	default:
		return nil
	}
}

// MemStore is an in-memory Store used in dev mode and tests. The single
// mutex makes every check-and-update atomic, matching the Redis scripts.
type MemStore struct {
	mu sync.Mutex
	m  map[int64]*record
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{m: make(map[int64]*record)}
}

func (s *MemStore) Create(ctx context.Context, pageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[pageID]; ok {
		return ErrAlreadyExists
	}
	s.m[pageID] = &record{}
	return nil
}

func (s *MemStore) Increment(ctx context.Context, pageID int64, field model.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.m[pageID]
	if !ok {
		return ErrNotFound
	}
	c := r.counter(field)
	if c == nil {
		return fmt.Errorf("%w: %q", ErrUnknownCounter, field)
	}
	*c++
	return nil
}

func (s *MemStore) Decrement(ctx context.Context, pageID int64, field model.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.m[pageID]
	if !ok {
		return ErrNotFound
	}
	c := r.counter(field)
	if c == nil {
		return fmt.Errorf("%w: %q", ErrUnknownCounter, field)
	}
	if *c <= 0 {
		return ErrConditionFailed
	}
	*c--
	return nil
}

func (s *MemStore) Get(ctx context.Context, pageID int64) (model.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.m[pageID]
	if !ok {
		return model.Stats{}, ErrNotFound
	}
	return model.Stats{
		PageID:         pageID,
		PostsCount:     r.posts,
		LikesCount:     r.likes,
		FollowersCount: r.followers,
	}, nil
}
