// Package aggregation turns per-campaign evaluation results into
// per-participant USD contributions for the current cycle.
package aggregation

import (
	"log"

	"reward-engine/internal/domain"
)

// CampaignResult pairs an eligible campaign with its frozen evaluation.
type CampaignResult struct {
	Campaign *domain.Campaign
	Result   *domain.EvaluationResult
}

// Service implements score aggregation. Pure and single-threaded over
// already-collected inputs.
type Service struct {
	periodDays int
	verbose    bool
}

// NewService creates an aggregation service for the given emissions
// period length.
func NewService(periodDays int) *Service {
	return &Service{periodDays: periodDays}
}

// WithVerbose enables per-campaign progress logging.
func (s *Service) WithVerbose(v bool) *Service {
	s.verbose = v
	return s
}

// Aggregate builds the cycle score matrix and emission targets.
//
// For each campaign the daily budget (budget / period days) is split
// strictly proportionally to raw scores, no minimum floor. A campaign
// whose total raw score is zero contributes nothing — not an error,
// simply no verified engagement yet. Per-campaign contributions are
// summed across campaigns into each participant's emission target.
func (s *Service) Aggregate(results []CampaignResult) (*domain.ScoreMatrix, domain.EmissionTarget) {
	matrix := domain.NewScoreMatrix()
	target := make(domain.EmissionTarget)

	for _, cr := range results {
		total := cr.Result.TotalRawScore()
		if total == 0 {
			s.log("campaign %s: zero total raw score, skipping", cr.Campaign.ID)
			continue
		}

		daily := cr.Campaign.DailyBudgetUSD(s.periodDays)
		for _, p := range cr.Result.Participants {
			if p.RawScore == 0 {
				continue
			}
			usd := daily * (p.RawScore / total)
			matrix.Set(p.ParticipantID, cr.Campaign.ID, usd)
			target[p.ParticipantID] += usd
		}
		s.log("campaign %s: $%.2f/day across %d participants",
			cr.Campaign.ID, daily, len(cr.Result.Participants))
	}

	return matrix, target
}

func (s *Service) log(format string, args ...interface{}) {
	if s.verbose {
		log.Printf("[aggregation] "+format, args...)
	}
}
