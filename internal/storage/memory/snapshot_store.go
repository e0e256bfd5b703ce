// Package memory provides in-memory store implementations for tests
// and the one-shot cycle binary.
package memory

import (
	"context"
	"sync"

	"reward-engine/internal/domain"
	"reward-engine/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[snapshotKey]*domain.Snapshot
}

type snapshotKey struct {
	pool       string
	campaignID string
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{data: make(map[snapshotKey]*domain.Snapshot)}
}

// Verify interface compliance at compile time.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// GetOrCreate returns the stored snapshot or computes and stores a new
// one. The create call runs outside the lock so a slow evaluator never
// blocks readers; the check-and-set under the lock guarantees a losing
// concurrent creator discards its own result and returns the winner's.
func (s *SnapshotStore) GetOrCreate(ctx context.Context, pool, campaignID string, create storage.CreateFunc) (*domain.Snapshot, error) {
	if pool == "" || campaignID == "" {
		return nil, storage.ErrInvalidInput
	}
	key := snapshotKey{pool: pool, campaignID: campaignID}

	s.mu.RLock()
	if snap, exists := s.data[key]; exists {
		s.mu.RUnlock()
		return copySnapshot(snap), nil
	}
	s.mu.RUnlock()

	snap, err := create(ctx)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if winner, exists := s.data[key]; exists {
		return copySnapshot(winner), nil
	}
	s.data[key] = copySnapshot(snap)
	return copySnapshot(snap), nil
}

// Get retrieves a snapshot. Returns ErrNotFound if absent.
func (s *SnapshotStore) Get(_ context.Context, pool, campaignID string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, exists := s.data[snapshotKey{pool: pool, campaignID: campaignID}]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copySnapshot(snap), nil
}

// copySnapshot returns a deep copy to prevent external mutation of the
// frozen snapshot.
func copySnapshot(s *domain.Snapshot) *domain.Snapshot {
	out := &domain.Snapshot{
		SnapshotID:   s.SnapshotID,
		Metadata:     s.Metadata,
		Participants: make([]domain.ParticipantResult, len(s.Participants)),
	}
	for i, p := range s.Participants {
		cp := p
		cp.IdentitySet = append([]string(nil), p.IdentitySet...)
		out.Participants[i] = cp
	}
	return out
}
