package storage

import (
	"context"

	"reward-engine/internal/domain"
)

// CreateFunc computes a fresh snapshot when none exists for a key.
// It is invoked at most once per GetOrCreate call; its result may be
// discarded if a concurrent creator wins the race.
type CreateFunc func(ctx context.Context) (*domain.Snapshot, error)

// SnapshotStore provides create-once/reuse persistence for
// per-campaign evaluation results, keyed by (pool, campaignID).
type SnapshotStore interface {
	// GetOrCreate returns the existing snapshot for the key, or invokes
	// create, persists the result, and returns it. Creation is an
	// atomic check-and-set: under concurrent cycles a losing creator
	// discards its own result and re-reads the winner's snapshot.
	// A stored snapshot that cannot be decoded is treated as absent
	// (recomputed) with a logged warning, never a hard failure.
	GetOrCreate(ctx context.Context, pool, campaignID string, create CreateFunc) (*domain.Snapshot, error)

	// Get retrieves a snapshot. Returns ErrNotFound if absent and
	// ErrCorruptSnapshot if stored but undecodable.
	Get(ctx context.Context, pool, campaignID string) (*domain.Snapshot, error)
}

// AuditStore persists the append-only cycle audit records.
type AuditStore interface {
	// Append stores one record per campaign for a cycle.
	Append(ctx context.Context, records []*domain.CampaignAudit) error

	// GetByCampaign retrieves all audit records for a (pool, campaignID),
	// ordered by cycle time ASC.
	GetByCampaign(ctx context.Context, pool, campaignID string) ([]*domain.CampaignAudit, error)
}
