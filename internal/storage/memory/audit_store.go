package memory

import (
	"context"
	"sort"
	"sync"

	"reward-engine/internal/domain"
	"reward-engine/internal/storage"
)

// AuditStore is an in-memory implementation of storage.AuditStore.
type AuditStore struct {
	mu      sync.RWMutex
	records []*domain.CampaignAudit
}

// NewAuditStore creates a new in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// Verify interface compliance at compile time.
var _ storage.AuditStore = (*AuditStore)(nil)

// Append stores cycle audit records.
func (s *AuditStore) Append(_ context.Context, records []*domain.CampaignAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if r == nil || r.RecordID == "" {
			return storage.ErrInvalidInput
		}
		cp := *r
		cp.ParticipantRewards = append([]domain.ParticipantReward(nil), r.ParticipantRewards...)
		s.records = append(s.records, &cp)
	}
	return nil
}

// GetByCampaign retrieves all records for a (pool, campaignID),
// ordered by cycle time ASC.
func (s *AuditStore) GetByCampaign(_ context.Context, pool, campaignID string) ([]*domain.CampaignAudit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CampaignAudit
	for _, r := range s.records {
		if r.Metadata.Pool == pool && r.Metadata.CampaignID == campaignID {
			cp := *r
			cp.ParticipantRewards = append([]domain.ParticipantReward(nil), r.ParticipantRewards...)
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CycleAt.Before(result[j].CycleAt)
	})
	return result, nil
}
