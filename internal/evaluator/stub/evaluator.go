// Package stub provides a deterministic evaluator for tests and the
// one-shot cycle binary. It returns canned results keyed by campaign id.
package stub

import (
	"context"
	"sync/atomic"
	"time"

	"reward-engine/internal/domain"
)

// Evaluator is a canned-result evaluator capability.
type Evaluator struct {
	platform string
	results  map[string]*domain.EvaluationResult
	err      error
	delay    time.Duration

	calls atomic.Int64
}

// New creates a stub evaluator for the given platform.
func New(platform string) *Evaluator {
	return &Evaluator{
		platform: platform,
		results:  make(map[string]*domain.EvaluationResult),
	}
}

// WithResult registers a canned result for a campaign.
func (e *Evaluator) WithResult(campaignID string, r *domain.EvaluationResult) *Evaluator {
	e.results[campaignID] = r
	return e
}

// WithError makes every Evaluate call fail with err.
func (e *Evaluator) WithError(err error) *Evaluator {
	e.err = err
	return e
}

// WithDelay makes Evaluate block before responding, for timeout tests.
func (e *Evaluator) WithDelay(d time.Duration) *Evaluator {
	e.delay = d
	return e
}

// Calls returns how many times Evaluate has been invoked.
func (e *Evaluator) Calls() int64 {
	return e.calls.Load()
}

// PlatformName returns the configured platform.
func (e *Evaluator) PlatformName() string {
	return e.platform
}

// Evaluate returns the canned result for the campaign, or an empty
// result when none was registered.
func (e *Evaluator) Evaluate(ctx context.Context, c *domain.Campaign) (*domain.EvaluationResult, error) {
	e.calls.Add(1)

	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.err != nil {
		return nil, e.err
	}

	if r, ok := e.results[c.ID]; ok {
		return r, nil
	}
	return &domain.EvaluationResult{CampaignID: c.ID}, nil
}
