package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"

	"reward-engine/internal/domain"
	"reward-engine/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
// Atomic create-if-absent is provided by a primary key on
// (pool, campaign_id) plus INSERT .. ON CONFLICT DO NOTHING: a losing
// concurrent creator inserts zero rows and re-reads the winner.
type SnapshotStore struct {
	pool      *Pool
	onCorrupt func()
}

// SnapshotStoreOption configures a SnapshotStore.
type SnapshotStoreOption func(*SnapshotStore)

// WithCorruptionHook registers a callback invoked each time a corrupt
// snapshot is detected and scheduled for recomputation.
func WithCorruptionHook(hook func()) SnapshotStoreOption {
	return func(s *SnapshotStore) {
		s.onCorrupt = hook
	}
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool, opts ...SnapshotStoreOption) *SnapshotStore {
	s := &SnapshotStore{pool: pool}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// participantRow is the JSONB payload schema for one participant.
type participantRow struct {
	ID              string   `json:"id"`
	IdentitySet     []string `json:"identitySet"`
	EngagementUnits int      `json:"engagementUnitCount"`
	RawScore        float64  `json:"rawScore"`
}

// GetOrCreate returns the stored snapshot or computes, persists and
// returns a new one. A corrupt stored snapshot is treated as absent:
// it is recomputed and replaced, with a logged warning.
func (s *SnapshotStore) GetOrCreate(ctx context.Context, pool, campaignID string, create storage.CreateFunc) (*domain.Snapshot, error) {
	if pool == "" || campaignID == "" {
		return nil, storage.ErrInvalidInput
	}

	snap, err := s.Get(ctx, pool, campaignID)
	switch {
	case err == nil:
		return snap, nil
	case errors.Is(err, storage.ErrCorruptSnapshot):
		log.Printf("[snapshot] warning: corrupt snapshot for (%s, %s), recomputing", pool, campaignID)
		if s.onCorrupt != nil {
			s.onCorrupt()
		}
		fresh, cerr := create(ctx)
		if cerr != nil {
			return nil, cerr
		}
		if fresh == nil {
			return nil, storage.ErrInvalidInput
		}
		rerr := s.replace(ctx, fresh)
		if errors.Is(rerr, storage.ErrDuplicateKey) {
			// A concurrent caller replaced the row first; use theirs.
			return s.Get(ctx, pool, campaignID)
		}
		if rerr != nil {
			return nil, rerr
		}
		return fresh, nil
	case errors.Is(err, storage.ErrNotFound):
		// fall through to create
	default:
		return nil, err
	}

	fresh, err := create(ctx)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, storage.ErrInvalidInput
	}

	inserted, err := s.insert(ctx, fresh)
	if err != nil {
		return nil, err
	}
	if inserted {
		return fresh, nil
	}

	// Lost the race: discard our result and re-read the winner's snapshot.
	winner, err := s.Get(ctx, pool, campaignID)
	if err != nil {
		return nil, fmt.Errorf("re-read winning snapshot: %w", err)
	}
	return winner, nil
}

// Get retrieves a snapshot. Returns ErrNotFound if absent and
// ErrCorruptSnapshot if the stored payload cannot be decoded.
func (s *SnapshotStore) Get(ctx context.Context, pool, campaignID string) (*domain.Snapshot, error) {
	query := `
		SELECT snapshot_id, pool, campaign_id, daily_budget_usd, captured_at, participants
		FROM reward_snapshots
		WHERE pool = $1 AND campaign_id = $2
	`

	var snap domain.Snapshot
	var payload []byte
	err := s.pool.QueryRow(ctx, query, pool, campaignID).Scan(
		&snap.SnapshotID,
		&snap.Metadata.Pool,
		&snap.Metadata.CampaignID,
		&snap.Metadata.DailyBudgetUSD,
		&snap.Metadata.CapturedAt,
		&payload,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	var rows []participantRow
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, fmt.Errorf("%w: decode participants for (%s, %s): %v",
			storage.ErrCorruptSnapshot, pool, campaignID, err)
	}

	snap.Participants = make([]domain.ParticipantResult, len(rows))
	for i, r := range rows {
		snap.Participants[i] = domain.ParticipantResult{
			ParticipantID:   r.ID,
			IdentitySet:     r.IdentitySet,
			EngagementUnits: r.EngagementUnits,
			RawScore:        r.RawScore,
		}
	}
	return &snap, nil
}

// insert writes the snapshot, returning false when the key already
// exists (concurrent winner).
func (s *SnapshotStore) insert(ctx context.Context, snap *domain.Snapshot) (bool, error) {
	payload, err := encodeParticipants(snap.Participants)
	if err != nil {
		return false, err
	}

	query := `
		INSERT INTO reward_snapshots (
			snapshot_id, pool, campaign_id, daily_budget_usd, captured_at, participants
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (pool, campaign_id) DO NOTHING
	`

	tag, err := s.pool.Exec(ctx, query,
		snap.SnapshotID,
		snap.Metadata.Pool,
		snap.Metadata.CampaignID,
		snap.Metadata.DailyBudgetUSD,
		snap.Metadata.CapturedAt,
		payload,
	)
	if err != nil {
		return false, fmt.Errorf("insert snapshot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// replace swaps a corrupt row for a freshly computed snapshot inside a
// transaction.
func (s *SnapshotStore) replace(ctx context.Context, snap *domain.Snapshot) error {
	payload, err := encodeParticipants(snap.Participants)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM reward_snapshots WHERE pool = $1 AND campaign_id = $2`,
		snap.Metadata.Pool, snap.Metadata.CampaignID,
	); err != nil {
		return fmt.Errorf("delete corrupt snapshot: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO reward_snapshots (
			snapshot_id, pool, campaign_id, daily_budget_usd, captured_at, participants
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		snap.SnapshotID,
		snap.Metadata.Pool,
		snap.Metadata.CampaignID,
		snap.Metadata.DailyBudgetUSD,
		snap.Metadata.CapturedAt,
		payload,
	); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert replacement snapshot: %w", err)
	}

	return tx.Commit(ctx)
}

func encodeParticipants(participants []domain.ParticipantResult) ([]byte, error) {
	rows := make([]participantRow, len(participants))
	for i, p := range participants {
		rows[i] = participantRow{
			ID:              p.ParticipantID,
			IdentitySet:     p.IdentitySet,
			EngagementUnits: p.EngagementUnits,
			RawScore:        p.RawScore,
		}
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("encode participants: %w", err)
	}
	return payload, nil
}
