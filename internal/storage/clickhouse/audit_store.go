package clickhouse

import (
	"context"
	"fmt"
	"time"

	"reward-engine/internal/domain"
	"reward-engine/internal/storage"
)

// AuditStore implements storage.AuditStore using ClickHouse. Cycle
// audit records are append-only analytic data, a natural fit for a
// MergeTree table with the participant breakdown in parallel arrays.
type AuditStore struct {
	conn *Conn
}

// NewAuditStore creates a new AuditStore.
func NewAuditStore(conn *Conn) *AuditStore {
	return &AuditStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AuditStore = (*AuditStore)(nil)

// Append stores cycle audit records via a batch insert.
func (s *AuditStore) Append(ctx context.Context, records []*domain.CampaignAudit) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO cycle_audit (
			record_id, cycle_at, campaign_id, pool, daily_budget_usd,
			total_participants, participant_ids, identity_sets,
			engagement_units, raw_scores, usd_amounts
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare audit batch: %w", err)
	}

	for _, r := range records {
		if r == nil || r.RecordID == "" {
			return storage.ErrInvalidInput
		}

		n := len(r.ParticipantRewards)
		ids := make([]string, n)
		identities := make([][]string, n)
		units := make([]int64, n)
		scores := make([]float64, n)
		amounts := make([]float64, n)
		for i, p := range r.ParticipantRewards {
			ids[i] = p.ParticipantID
			identities[i] = p.IdentitySet
			units[i] = int64(p.EngagementUnits)
			scores[i] = p.RawScore
			amounts[i] = p.USDAmount
		}

		if err := batch.Append(
			r.RecordID,
			r.CycleAt,
			r.Metadata.CampaignID,
			r.Metadata.Pool,
			r.Metadata.DailyBudgetUSD,
			uint32(r.Metadata.TotalParticipants),
			ids,
			identities,
			units,
			scores,
			amounts,
		); err != nil {
			return fmt.Errorf("append audit record %s: %w", r.RecordID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send audit batch: %w", err)
	}
	return nil
}

// GetByCampaign retrieves all audit records for a (pool, campaignID),
// ordered by cycle time ASC.
func (s *AuditStore) GetByCampaign(ctx context.Context, pool, campaignID string) ([]*domain.CampaignAudit, error) {
	query := `
		SELECT record_id, cycle_at, campaign_id, pool, daily_budget_usd,
		       total_participants, participant_ids, identity_sets,
		       engagement_units, raw_scores, usd_amounts
		FROM cycle_audit
		WHERE pool = ? AND campaign_id = ?
		ORDER BY cycle_at ASC
	`

	rows, err := s.conn.Query(ctx, query, pool, campaignID)
	if err != nil {
		return nil, fmt.Errorf("get audit records: %w", err)
	}
	defer rows.Close()

	var records []*domain.CampaignAudit
	for rows.Next() {
		var (
			r          domain.CampaignAudit
			cycleAt    time.Time
			total      uint32
			ids        []string
			identities [][]string
			units      []int64
			scores     []float64
			amounts    []float64
		)

		if err := rows.Scan(
			&r.RecordID,
			&cycleAt,
			&r.Metadata.CampaignID,
			&r.Metadata.Pool,
			&r.Metadata.DailyBudgetUSD,
			&total,
			&ids,
			&identities,
			&units,
			&scores,
			&amounts,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}

		r.CycleAt = cycleAt
		r.Metadata.TotalParticipants = int(total)
		r.ParticipantRewards = make([]domain.ParticipantReward, len(ids))
		for i := range ids {
			r.ParticipantRewards[i] = domain.ParticipantReward{
				ParticipantID:   ids[i],
				IdentitySet:     identities[i],
				EngagementUnits: int(units[i]),
				RawScore:        scores[i],
				USDAmount:       amounts[i],
			}
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}
	return records, nil
}
