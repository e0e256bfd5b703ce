package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"reward-engine/internal/domain"
	"reward-engine/internal/storage"
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

func TestGetOrCreate_CreatesOnce(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	var calls atomic.Int64
	create := func(context.Context) (*domain.Snapshot, error) {
		calls.Add(1)
		return testSnapshot("brief-1"), nil
	}

	// Repeated calls across the reward window must evaluate exactly once.
	for i := 0; i < 5; i++ {
		snap, err := store.GetOrCreate(ctx, "main", "brief-1", create)
		if err != nil {
			t.Fatalf("GetOrCreate #%d: %v", i, err)
		}
		if snap.SnapshotID != "snap-brief-1" {
			t.Errorf("SnapshotID = %q, want snap-brief-1", snap.SnapshotID)
		}
	}

	if calls.Load() != 1 {
		t.Errorf("create invoked %d times, want 1", calls.Load())
	}
}

func TestGetOrCreate_LoserDiscardsResult(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	// Two overlapping cycles compute different results; only one may win
	// and both must observe the winner's snapshot.
	var wg sync.WaitGroup
	results := make([]*domain.Snapshot, 2)
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := store.GetOrCreate(ctx, "main", "brief-1", func(context.Context) (*domain.Snapshot, error) {
				s := testSnapshot("brief-1")
				s.SnapshotID = s.SnapshotID + "-" + string(rune('a'+i))
				return s, nil
			})
			if err != nil {
				t.Errorf("GetOrCreate: %v", err)
				return
			}
			results[i] = snap
		}()
	}
	wg.Wait()

	if results[0] == nil || results[1] == nil {
		t.Fatal("missing results")
	}
	if results[0].SnapshotID != results[1].SnapshotID {
		t.Errorf("concurrent creators observed different snapshots: %q vs %q",
			results[0].SnapshotID, results[1].SnapshotID)
	}

	stored, err := store.Get(ctx, "main", "brief-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.SnapshotID != results[0].SnapshotID {
		t.Errorf("stored snapshot %q differs from observed %q", stored.SnapshotID, results[0].SnapshotID)
	}
}

func TestGetOrCreate_CreateError(t *testing.T) {
	store := NewSnapshotStore()
	wantErr := errors.New("evaluator down")

	_, err := store.GetOrCreate(context.Background(), "main", "brief-1", func(context.Context) (*domain.Snapshot, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want create error", err)
	}

	// A failed create must not poison the key.
	if _, err := store.Get(context.Background(), "main", "brief-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get after failed create = %v, want ErrNotFound", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	store := NewSnapshotStore()
	_, err := store.Get(context.Background(), "main", "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get = %v, want ErrNotFound", err)
	}
}

func TestGetOrCreate_ReturnsCopy(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	snap, err := store.GetOrCreate(ctx, "main", "brief-1", func(context.Context) (*domain.Snapshot, error) {
		return testSnapshot("brief-1"), nil
	})
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	// Mutating the returned snapshot must not affect the frozen copy.
	snap.Participants[0].RawScore = 999

	again, err := store.Get(ctx, "main", "brief-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if again.Participants[0].RawScore != 0.6 {
		t.Errorf("stored snapshot mutated: RawScore = %f, want 0.6", again.Participants[0].RawScore)
	}
}

func TestGetOrCreate_DistinctPools(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	var calls atomic.Int64
	create := func(context.Context) (*domain.Snapshot, error) {
		calls.Add(1)
		return testSnapshot("brief-1"), nil
	}

	if _, err := store.GetOrCreate(ctx, "main", "brief-1", create); err != nil {
		t.Fatalf("GetOrCreate main: %v", err)
	}
	if _, err := store.GetOrCreate(ctx, "alt", "brief-1", create); err != nil {
		t.Fatalf("GetOrCreate alt: %v", err)
	}

	if calls.Load() != 2 {
		t.Errorf("create invoked %d times, want 2 (one per pool)", calls.Load())
	}
}
