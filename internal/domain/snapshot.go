package domain

import "time"

// SnapshotMetadata captures the campaign state at snapshot time.
type SnapshotMetadata struct {
	CampaignID     string
	Pool           string
	DailyBudgetUSD float64
	CapturedAt     time.Time
}

// Snapshot is the frozen evaluation result for a campaign, created on
// the first eligible cycle and reused for the remainder of the reward
// window. Engagement data is deliberately frozen at first-eligible-day
// values so a participant's reward stays stable across the whole
// window even if upstream engagement counts change later.
type Snapshot struct {
	SnapshotID   string
	Metadata     SnapshotMetadata
	Participants []ParticipantResult
}

// Result re-expresses the snapshot as an evaluation result.
func (s *Snapshot) Result() *EvaluationResult {
	return &EvaluationResult{
		CampaignID:   s.Metadata.CampaignID,
		Participants: s.Participants,
	}
}
