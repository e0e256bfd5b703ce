// Package publisher talks to the campaign publisher service: fetching
// the active campaign set over HTTP and subscribing to campaign-update
// notifications over WebSocket.
package publisher

import (
	"context"

	"reward-engine/internal/domain"
)

// CampaignSource provides the active campaign set for a cycle.
type CampaignSource interface {
	// FetchActiveCampaigns returns all campaigns the publisher currently
	// considers active. Window eligibility is NOT applied here; the
	// orchestrator filters by reward window.
	FetchActiveCampaigns(ctx context.Context) ([]*domain.Campaign, error)
}
