// Package distribution normalizes raw weights to a probability simplex
// and carves out the treasury share.
package distribution

import (
	"fmt"
	"math"

	"reward-engine/internal/domain"
	"reward-engine/internal/normalization"
)

// SumTolerance is the accepted deviation of the final weight sum from
// 1.0 after residual correction. Exceeding it is an internal assertion
// failure, never silently corrected.
const SumTolerance = 1e-9

// TreasuryConfig designates the participant receiving the fixed
// percentage carve-out.
type TreasuryConfig struct {
	Pct           float64 // share reserved for the treasury, in [0,1]
	ParticipantID string
}

// Validate rejects out-of-range treasury configuration. Called at
// construction so a bad percentage can never reach a cycle.
func (t TreasuryConfig) Validate() error {
	if t.Pct < 0 || t.Pct > 1 {
		return fmt.Errorf("treasury percentage %.4f outside [0,1]", t.Pct)
	}
	if t.ParticipantID == "" {
		return fmt.Errorf("treasury participant id is required")
	}
	return nil
}

// Service implements reward distribution with treasury allocation.
type Service struct {
	treasury TreasuryConfig
}

// NewService creates a distribution service, failing on invalid
// treasury configuration.
func NewService(treasury TreasuryConfig) (*Service, error) {
	if err := treasury.Validate(); err != nil {
		return nil, err
	}
	return &Service{treasury: treasury}, nil
}

// Distribute converts raw weights into the final weight vector.
//
// Raw weights are normalized over the full participant universe
// (participants with no target get 0). When nothing was earned the
// result is an all-zero vector — a valid state. Otherwise the treasury
// receives pct + norm(treasury)*(1-pct), everyone else
// norm(id)*(1-pct), and floating-point drift is corrected by assigning
// the residual to the largest final weight (lowest id on ties) so the
// sum is exactly 1.0.
func (s *Service) Distribute(raw map[string]float64, universe []string) (domain.WeightVector, error) {
	full := withTreasury(universe, s.treasury.ParticipantID)
	norm := normalization.Normalize(raw, full)

	final := make(domain.WeightVector, len(norm))

	var rawSum float64
	for _, id := range full {
		rawSum += raw[id]
	}
	if rawSum == 0 {
		// No participant earned anything this cycle.
		for _, id := range full {
			final[id] = 0
		}
		return final, nil
	}

	keep := 1 - s.treasury.Pct
	for id, w := range norm {
		final[id] = w * keep
	}
	final[s.treasury.ParticipantID] += s.treasury.Pct

	normalization.AssignResidual(final, 1.0)

	if err := checkInvariants(final); err != nil {
		return nil, err
	}
	return final, nil
}

// checkInvariants asserts the post-distribution contract: no negative
// or NaN weight, sum within SumTolerance of 1.0.
func checkInvariants(v domain.WeightVector) error {
	for id, w := range v {
		if math.IsNaN(w) {
			return fmt.Errorf("weight for %s is NaN", id)
		}
		if w < 0 {
			return fmt.Errorf("weight for %s is negative: %g", id, w)
		}
	}
	if diff := math.Abs(v.Sum() - 1.0); diff > SumTolerance {
		return fmt.Errorf("weight sum deviates from 1.0 by %g", diff)
	}
	return nil
}

// withTreasury ensures the treasury id is part of the universe.
func withTreasury(universe []string, treasuryID string) []string {
	for _, id := range universe {
		if id == treasuryID {
			return universe
		}
	}
	out := make([]string, 0, len(universe)+1)
	out = append(out, universe...)
	return append(out, treasuryID)
}
