// Package registry maps a campaign's target platform to its evaluator
// capability. A pure lookup table: adding a platform never touches the
// orchestrator.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"reward-engine/internal/domain"
)

// ErrUnknownPlatform is returned when a campaign references a platform
// with no registered evaluator.
var ErrUnknownPlatform = errors.New("unknown platform")

// Evaluator scores one campaign on one platform. Implementations live
// outside the core; the orchestrator only ever reaches them through
// the snapshot store's create path.
type Evaluator interface {
	// PlatformName returns the platform this evaluator serves.
	PlatformName() string

	// Evaluate produces the per-participant engagement result for the
	// campaign. Called at most once per campaign over its reward window.
	Evaluate(ctx context.Context, c *domain.Campaign) (*domain.EvaluationResult, error)
}

// Registry holds registered evaluators keyed by platform name.
type Registry struct {
	mu         sync.RWMutex
	evaluators map[string]Evaluator
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{evaluators: make(map[string]Evaluator)}
}

// Register adds an evaluator, replacing any previous registration for
// the same platform.
func (r *Registry) Register(e Evaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluators[e.PlatformName()] = e
}

// Resolve returns the evaluator for a platform, or ErrUnknownPlatform.
func (r *Registry) Resolve(platform string) (Evaluator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.evaluators[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
	}
	return e, nil
}

// Platforms returns the registered platform names, sorted.
func (r *Registry) Platforms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.evaluators))
	for name := range r.evaluators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
