// Package emission converts USD emission targets into raw,
// unnormalized chain-weight units.
package emission

import (
	"context"
	"fmt"

	"reward-engine/internal/domain"
)

// RateSource supplies the USD to raw-weight conversion factor for a
// cycle. The exact rate semantics (price feed, reference rate) are an
// external configuration concern; the core only requires the factor to
// be strictly positive, which makes the conversion order-preserving.
type RateSource interface {
	ConversionFactor(ctx context.Context) (float64, error)
}

// FixedRateSource derives the factor from a fixed total daily USD
// emission value: raw weight = usd / totalDailyUSD.
type FixedRateSource struct {
	factor float64
}

// NewFixedRateSource creates a rate source from the total daily USD
// value of chain emissions. Must be > 0.
func NewFixedRateSource(totalDailyUSD float64) (*FixedRateSource, error) {
	if totalDailyUSD <= 0 {
		return nil, fmt.Errorf("total daily emission USD must be > 0, got %f", totalDailyUSD)
	}
	return &FixedRateSource{factor: 1.0 / totalDailyUSD}, nil
}

// ConversionFactor returns the fixed factor.
func (s *FixedRateSource) ConversionFactor(_ context.Context) (float64, error) {
	return s.factor, nil
}

// Service implements emission calculation.
type Service struct {
	rates RateSource
}

// NewService creates an emission calculation service.
func NewService(rates RateSource) *Service {
	return &Service{rates: rates}
}

// ToRawWeights converts each participant's USD target into raw weight
// units. Multiplication by a single positive factor guarantees a
// participant with a strictly larger USD target never receives a
// strictly smaller raw weight.
func (s *Service) ToRawWeights(ctx context.Context, target domain.EmissionTarget) (map[string]float64, error) {
	factor, err := s.rates.ConversionFactor(ctx)
	if err != nil {
		return nil, fmt.Errorf("conversion factor: %w", err)
	}
	if factor <= 0 {
		return nil, fmt.Errorf("conversion factor must be > 0, got %f", factor)
	}

	raw := make(map[string]float64, len(target))
	for id, usd := range target {
		raw[id] = usd * factor
	}
	return raw, nil
}
