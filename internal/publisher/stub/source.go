// Package stub provides an in-memory CampaignSource for tests and
// development runs.
package stub

import (
	"context"
	"sync"

	"reward-engine/internal/domain"
	"reward-engine/internal/publisher"
)

// CampaignSource implements publisher.CampaignSource from a canned set.
type CampaignSource struct {
	mu        sync.Mutex
	campaigns []*domain.Campaign
	err       error
}

// NewCampaignSource creates a stub source serving the given campaigns.
func NewCampaignSource(campaigns ...*domain.Campaign) *CampaignSource {
	return &CampaignSource{campaigns: campaigns}
}

// Compile-time interface check.
var _ publisher.CampaignSource = (*CampaignSource)(nil)

// SetCampaigns replaces the served campaign set.
func (s *CampaignSource) SetCampaigns(campaigns ...*domain.Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns = campaigns
}

// SetError makes subsequent fetches fail with err. Pass nil to clear.
func (s *CampaignSource) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// FetchActiveCampaigns returns the canned campaign set.
func (s *CampaignSource) FetchActiveCampaigns(_ context.Context) ([]*domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*domain.Campaign, len(s.campaigns))
	copy(out, s.campaigns)
	return out, nil
}
