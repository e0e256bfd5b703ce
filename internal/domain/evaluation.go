package domain

// ParticipantResult holds one participant's verified engagement for a
// single campaign, as reported by a platform evaluator.
type ParticipantResult struct {
	ParticipantID   string   // chain participant identity
	IdentitySet     []string // platform account identities backing the score
	EngagementUnits int      // count of scored content items
	RawScore        float64  // unitless engagement score, >= 0
}

// EvaluationResult is the full evaluator output for one campaign.
// Its participant set is the eligibility universe for that campaign.
type EvaluationResult struct {
	CampaignID   string
	Participants []ParticipantResult
}

// TotalRawScore sums raw scores over all participants.
func (r *EvaluationResult) TotalRawScore() float64 {
	var total float64
	for _, p := range r.Participants {
		total += p.RawScore
	}
	return total
}
