package domain

// ScoreMatrix maps participant -> campaign -> USD contribution for the
// current cycle only. Rebuilt every cycle, discarded after use.
type ScoreMatrix struct {
	contributions map[string]map[string]float64
}

// NewScoreMatrix creates an empty score matrix.
func NewScoreMatrix() *ScoreMatrix {
	return &ScoreMatrix{contributions: make(map[string]map[string]float64)}
}

// Set records a participant's USD contribution for a campaign.
func (m *ScoreMatrix) Set(participantID, campaignID string, usd float64) {
	row, ok := m.contributions[participantID]
	if !ok {
		row = make(map[string]float64)
		m.contributions[participantID] = row
	}
	row[campaignID] = usd
}

// Get returns a participant's USD contribution for a campaign.
func (m *ScoreMatrix) Get(participantID, campaignID string) float64 {
	return m.contributions[participantID][campaignID]
}

// CampaignTotal sums contributions for one campaign over all participants.
func (m *ScoreMatrix) CampaignTotal(campaignID string) float64 {
	var total float64
	for _, row := range m.contributions {
		total += row[campaignID]
	}
	return total
}

// ParticipantIDs returns all participants with at least one contribution.
func (m *ScoreMatrix) ParticipantIDs() []string {
	ids := make([]string, 0, len(m.contributions))
	for id := range m.contributions {
		ids = append(ids, id)
	}
	return ids
}

// EmissionTarget maps participant -> aggregated USD entitlement across
// all eligible campaigns for the current cycle.
type EmissionTarget map[string]float64

// TotalUSD sums targets over all participants.
func (t EmissionTarget) TotalUSD() float64 {
	var total float64
	for _, usd := range t {
		total += usd
	}
	return total
}
