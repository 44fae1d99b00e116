package memory

import (
	"context"
	"sync"

	"transit-console/internal/backup/domain/model"
	"transit-console/internal/shared/errors"
)

const followerBuffer = 64

// ProgressStore keeps the latest progress per restore and fans updates out to followers.
type ProgressStore struct {
	mu          sync.Mutex
	latest      map[string]model.RestoreProgress
	subscribers map[string]map[chan model.RestoreProgress]struct{}
}

func NewProgressStore() *ProgressStore {
	return &ProgressStore{
		latest:      make(map[string]model.RestoreProgress),
		subscribers: make(map[string]map[chan model.RestoreProgress]struct{}),
	}
}

// Publish records progress and hands it to every follower. A follower whose
// buffer is full loses its oldest pending update, never the newest one, so
// the terminal phase always arrives.
func (s *ProgressStore) Publish(ctx context.Context, progress model.RestoreProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[progress.RestoreID] = progress.Clone()
	for ch := range s.subscribers[progress.RestoreID] {
		offer(ch, progress.Clone())
	}
	return nil
}

// offer sends p without blocking, evicting the oldest buffered update when
// ch is full. Only Publish sends, under s.mu.
func offer(ch chan model.RestoreProgress, p model.RestoreProgress) {
	for {
		select {
		case ch <- p:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (s *ProgressStore) Latest(ctx context.Context, restoreID string) (*model.RestoreProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.latest[restoreID]
	if !ok {
		return nil, errors.ErrRestoreNotFound
	}
	clone := p.Clone()
	return &clone, nil
}

// Follow calls fn with the latest recorded progress, if any, and then with
// every later update until fn returns false, a terminal phase is delivered or
// ctx ends.
func (s *ProgressStore) Follow(ctx context.Context, restoreID string, fn func(model.RestoreProgress) bool) error {
	ch := make(chan model.RestoreProgress, followerBuffer)
	s.mu.Lock()
	if s.subscribers[restoreID] == nil {
		s.subscribers[restoreID] = make(map[chan model.RestoreProgress]struct{})
	}
	s.subscribers[restoreID][ch] = struct{}{}
	current, hasCurrent := s.latest[restoreID]
	if hasCurrent {
		current = current.Clone()
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.subscribers[restoreID], ch)
		if len(s.subscribers[restoreID]) == 0 {
			delete(s.subscribers, restoreID)
		}
		s.mu.Unlock()
	}()

	if hasCurrent && (!fn(current) || current.Phase.Terminal()) {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p := <-ch:
			if !fn(p) || p.Phase.Terminal() {
				return nil
			}
		}
	}
}
