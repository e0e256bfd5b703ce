package domain

import "time"

// AuditMetadata describes the campaign a cycle audit record covers.
type AuditMetadata struct {
	CampaignID        string
	Pool              string
	DailyBudgetUSD    float64
	TotalParticipants int
}

// ParticipantReward is one participant's per-campaign breakdown inside
// an audit record.
type ParticipantReward struct {
	ParticipantID   string
	IdentitySet     []string
	EngagementUnits int
	RawScore        float64
	USDAmount       float64
}

// CampaignAudit is the append-only audit artifact emitted once per
// campaign per cycle. A campaign with zero total raw score produces a
// record with no participant rows.
type CampaignAudit struct {
	RecordID           string
	CycleAt            time.Time
	Metadata           AuditMetadata
	ParticipantRewards []ParticipantReward
}
