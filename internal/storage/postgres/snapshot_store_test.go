package postgres_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reward-engine/internal/domain"
	"reward-engine/internal/storage"
	"reward-engine/internal/storage/postgres"
)

func testSnapshot(campaignID string) *domain.Snapshot {
	return &domain.Snapshot{
		SnapshotID: "snap-" + campaignID,
		Metadata: domain.SnapshotMetadata{
			CampaignID:     campaignID,
			Pool:           "main",
			DailyBudgetUSD: 1000,
			CapturedAt:     time.Date(2025, 11, 14, 0, 0, 0, 0, time.UTC),
		},
		Participants: []domain.ParticipantResult{
			{ParticipantID: "p1", IdentitySet: []string{"@p1"}, EngagementUnits: 3, RawScore: 0.6},
			{ParticipantID: "p2", IdentitySet: []string{"@p2"}, EngagementUnits: 1, RawScore: 0.4},
		},
	}
}

func TestSnapshotStore_GetOrCreate_RoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewSnapshotStore(pool)
	ctx := context.Background()

	var calls atomic.Int64
	create := func(context.Context) (*domain.Snapshot, error) {
		calls.Add(1)
		return testSnapshot("brief-1"), nil
	}

	first, err := store.GetOrCreate(ctx, "main", "brief-1", create)
	require.NoError(t, err)
	require.Equal(t, "snap-brief-1", first.SnapshotID)

	// Second eligible cycle: reuse, no recomputation.
	second, err := store.GetOrCreate(ctx, "main", "brief-1", create)
	require.NoError(t, err)
	require.Equal(t, int64(1), calls.Load(), "create must run exactly once")

	require.Equal(t, first.SnapshotID, second.SnapshotID)
	require.Equal(t, first.Metadata.DailyBudgetUSD, second.Metadata.DailyBudgetUSD)
	require.Len(t, second.Participants, 2)
	require.Equal(t, "p1", second.Participants[0].ParticipantID)
	require.Equal(t, []string{"@p1"}, second.Participants[0].IdentitySet)
	require.Equal(t, 3, second.Participants[0].EngagementUnits)
	require.InDelta(t, 0.6, second.Participants[0].RawScore, 1e-12)
	require.True(t, second.Metadata.CapturedAt.Equal(first.Metadata.CapturedAt))
}

func TestSnapshotStore_ConcurrentCreators(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewSnapshotStore(pool)
	ctx := context.Background()

	// Overlapping cycles racing on the same key: exactly one result may
	// be persisted and every caller must observe it.
	const workers = 8
	results := make([]*domain.Snapshot, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := store.GetOrCreate(ctx, "main", "brief-1", func(context.Context) (*domain.Snapshot, error) {
				s := testSnapshot("brief-1")
				s.SnapshotID = s.SnapshotID + "-" + string(rune('a'+i))
				return s, nil
			})
			require.NoError(t, err)
			results[i] = snap
		}()
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		require.Equal(t, results[0].SnapshotID, results[i].SnapshotID,
			"all concurrent creators must observe the same winning snapshot")
	}
}

func TestSnapshotStore_Get_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewSnapshotStore(pool)

	_, err := store.Get(context.Background(), "main", "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSnapshotStore_CorruptSnapshotRecomputed(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	var corruptions atomic.Int64
	store := postgres.NewSnapshotStore(pool,
		postgres.WithCorruptionHook(func() { corruptions.Add(1) }))
	ctx := context.Background()

	// Plant a row whose participants payload is valid JSON but not the
	// expected array shape.
	_, err := pool.Exec(ctx, `
		INSERT INTO reward_snapshots (
			snapshot_id, pool, campaign_id, daily_budget_usd, captured_at, participants
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		"snap-bad", "main", "brief-1", 1000.0,
		time.Date(2025, 11, 14, 0, 0, 0, 0, time.UTC),
		[]byte(`{"not":"an array"}`),
	)
	require.NoError(t, err)

	_, err = store.Get(ctx, "main", "brief-1")
	require.ErrorIs(t, err, storage.ErrCorruptSnapshot)

	// GetOrCreate treats corruption as absent and recomputes.
	fresh, err := store.GetOrCreate(ctx, "main", "brief-1", func(context.Context) (*domain.Snapshot, error) {
		return testSnapshot("brief-1"), nil
	})
	require.NoError(t, err)
	require.Equal(t, "snap-brief-1", fresh.SnapshotID)
	require.Equal(t, int64(1), corruptions.Load(), "corruption hook must fire once")

	// The replacement must be readable afterwards.
	again, err := store.Get(ctx, "main", "brief-1")
	require.NoError(t, err)
	require.Equal(t, "snap-brief-1", again.SnapshotID)
	require.Len(t, again.Participants, 2)
}

func TestSnapshotStore_CreateErrorPropagates(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewSnapshotStore(pool)
	wantErr := errors.New("evaluator timeout")

	_, err := store.GetOrCreate(context.Background(), "main", "brief-1", func(context.Context) (*domain.Snapshot, error) {
		return nil, wantErr
	})
	require.ErrorIs(t, err, wantErr)

	// The failed create must leave no row behind.
	_, err = store.Get(context.Background(), "main", "brief-1")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
