// Package orchestrator runs the reward cycle: fetch campaigns, freeze
// or reuse per-campaign score snapshots, aggregate USD contributions,
// convert to raw weights, and normalize into the final weight vector.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"reward-engine/internal/aggregation"
	"reward-engine/internal/distribution"
	"reward-engine/internal/domain"
	"reward-engine/internal/emission"
	"reward-engine/internal/observability"
	"reward-engine/internal/publisher"
	"reward-engine/internal/registry"
	"reward-engine/internal/runid"
	"reward-engine/internal/storage"
)

// DefaultEvaluatorTimeout bounds a single campaign evaluation.
const DefaultEvaluatorTimeout = 10 * time.Minute

// Options configures the Orchestrator. Campaigns, Registry, Snapshots,
// Aggregation, Emission, and Distribution are required; the rest are
// optional.
type Options struct {
	Campaigns publisher.CampaignSource
	Registry  *registry.Registry
	Snapshots storage.SnapshotStore

	Aggregation  *aggregation.Service
	Emission     *emission.Service
	Distribution *distribution.Service

	// Audits is optional; a failed append is logged, never fatal for
	// the cycle.
	Audits storage.AuditStore

	// Window filters fetched campaigns by day age since end date.
	Window domain.RewardWindow

	// EvaluatorTimeout bounds each evaluation. Zero means
	// DefaultEvaluatorTimeout.
	EvaluatorTimeout time.Duration

	// IdentityFilter drops participants with malformed ids before a
	// snapshot is frozen. Nil accepts everything.
	IdentityFilter func(id string) bool

	// Metrics is optional instrumentation.
	Metrics *observability.Metrics

	Verbose bool
}

// Orchestrator executes reward cycles.
type Orchestrator struct {
	campaigns    publisher.CampaignSource
	registry     *registry.Registry
	snapshots    storage.SnapshotStore
	audits       storage.AuditStore
	aggregation  *aggregation.Service
	emission     *emission.Service
	distribution *distribution.Service

	window         domain.RewardWindow
	evalTimeout    time.Duration
	identityFilter func(string) bool
	metrics        *observability.Metrics
	verbose        bool
}

// New creates an orchestrator, validating required collaborators.
func New(opts Options) (*Orchestrator, error) {
	if opts.Campaigns == nil {
		return nil, fmt.Errorf("campaign source is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("evaluator registry is required")
	}
	if opts.Snapshots == nil {
		return nil, fmt.Errorf("snapshot store is required")
	}
	if opts.Aggregation == nil || opts.Emission == nil || opts.Distribution == nil {
		return nil, fmt.Errorf("aggregation, emission, and distribution services are required")
	}

	timeout := opts.EvaluatorTimeout
	if timeout == 0 {
		timeout = DefaultEvaluatorTimeout
	}

	return &Orchestrator{
		campaigns:      opts.Campaigns,
		registry:       opts.Registry,
		snapshots:      opts.Snapshots,
		audits:         opts.Audits,
		aggregation:    opts.Aggregation,
		emission:       opts.Emission,
		distribution:   opts.Distribution,
		window:         opts.Window,
		evalTimeout:    timeout,
		identityFilter: opts.IdentityFilter,
		metrics:        opts.Metrics,
		verbose:        opts.Verbose,
	}, nil
}

// campaignSnapshot pairs an eligible campaign with its frozen snapshot.
type campaignSnapshot struct {
	campaign *domain.Campaign
	snapshot *domain.Snapshot
}

// RunCycle executes one full reward cycle at the given time and returns
// the final weight vector together with the audit records it emitted.
//
// A campaign that fails evaluation is skipped for this cycle and logged;
// it does not fail the cycle. A publisher fetch failure or a broken
// emission conversion is fatal: without them no meaningful vector exists.
func (o *Orchestrator) RunCycle(ctx context.Context, now time.Time) (domain.WeightVector, []*domain.CampaignAudit, error) {
	started := time.Now()

	campaigns, err := o.campaigns.FetchActiveCampaigns(ctx)
	if err != nil {
		if o.metrics != nil {
			o.metrics.PublisherFetchErrors.Inc()
			o.metrics.CyclesTotal.WithLabelValues("error").Inc()
		}
		return nil, nil, fmt.Errorf("fetch campaigns: %w", err)
	}

	eligible := o.filterEligible(campaigns, now)
	if o.metrics != nil {
		o.metrics.CampaignsFetched.Set(float64(len(campaigns)))
		o.metrics.CampaignsEligible.Set(float64(len(eligible)))
	}
	o.logf("cycle at %s: %d campaigns fetched, %d eligible",
		now.UTC().Format(time.RFC3339), len(campaigns), len(eligible))

	frozen := o.collectSnapshots(ctx, eligible, now)

	results := make([]aggregation.CampaignResult, len(frozen))
	for i, cs := range frozen {
		results[i] = aggregation.CampaignResult{
			Campaign: cs.campaign,
			Result:   cs.snapshot.Result(),
		}
	}

	matrix, target := o.aggregation.Aggregate(results)

	raw, err := o.emission.ToRawWeights(ctx, target)
	if err != nil {
		if o.metrics != nil {
			o.metrics.CyclesTotal.WithLabelValues("error").Inc()
		}
		return nil, nil, fmt.Errorf("emission conversion: %w", err)
	}

	weights, err := o.distribution.Distribute(raw, snapshotUniverse(frozen))
	if err != nil {
		if o.metrics != nil {
			o.metrics.CyclesTotal.WithLabelValues("error").Inc()
		}
		return nil, nil, fmt.Errorf("distribution: %w", err)
	}

	audits := buildAudits(frozen, matrix, now)
	o.appendAudits(ctx, audits)

	if o.metrics != nil {
		o.metrics.CyclesTotal.WithLabelValues("ok").Inc()
		o.metrics.CycleDuration.Observe(time.Since(started).Seconds())
		o.metrics.LastSuccessfulCycle.Set(float64(now.UTC().Unix()))
		o.metrics.WeightSum.Set(weights.Sum())
		o.metrics.ParticipantsRewarded.Set(float64(weights.NonZero()))
	}
	o.logf("cycle done: %d participants weighted, sum=%.9f, took %s",
		weights.NonZero(), weights.Sum(), time.Since(started).Round(time.Millisecond))

	return weights, audits, nil
}

// filterEligible keeps campaigns inside the reward window.
func (o *Orchestrator) filterEligible(campaigns []*domain.Campaign, now time.Time) []*domain.Campaign {
	eligible := make([]*domain.Campaign, 0, len(campaigns))
	for _, c := range campaigns {
		if o.window.Eligible(c, now) {
			eligible = append(eligible, c)
		} else {
			o.logf("campaign %s: age %d days outside window, skipping",
				c.ID, o.window.AgeDays(c.EndDate, now))
		}
	}
	return eligible
}

// collectSnapshots freezes or reuses a snapshot for each eligible
// campaign, evaluating in parallel. Campaigns that fail are dropped
// from this cycle.
func (o *Orchestrator) collectSnapshots(ctx context.Context, eligible []*domain.Campaign, now time.Time) []campaignSnapshot {
	var (
		mu     sync.Mutex
		frozen []campaignSnapshot
		wg     sync.WaitGroup
	)

	for _, c := range eligible {
		c := c
		wg.Add(1)
		go func() {
			defer wg.Done()

			var created bool
			snap, err := o.snapshots.GetOrCreate(ctx, c.Pool, c.ID, func(ctx context.Context) (*domain.Snapshot, error) {
				created = true
				return o.freezeSnapshot(ctx, c, now)
			})
			if err != nil {
				log.Printf("[orchestrator] campaign %s: %v, skipping this cycle", c.ID, err)
				if o.metrics != nil {
					o.metrics.CampaignsSkipped.WithLabelValues(skipReason(err)).Inc()
				}
				return
			}
			if !created {
				o.logf("campaign %s: reusing snapshot %s", c.ID, snap.SnapshotID)
				if o.metrics != nil {
					o.metrics.SnapshotsReused.Inc()
				}
			} else if o.metrics != nil {
				o.metrics.SnapshotWrites.Inc()
			}

			mu.Lock()
			frozen = append(frozen, campaignSnapshot{campaign: c, snapshot: snap})
			mu.Unlock()
		}()
	}
	wg.Wait()

	// Deterministic downstream order regardless of completion order.
	sort.Slice(frozen, func(i, j int) bool {
		return frozen[i].campaign.ID < frozen[j].campaign.ID
	})
	return frozen
}

// freezeSnapshot evaluates a campaign and builds the snapshot that will
// be reused for the rest of the reward window.
func (o *Orchestrator) freezeSnapshot(ctx context.Context, c *domain.Campaign, now time.Time) (*domain.Snapshot, error) {
	evaluator, err := o.registry.Resolve(c.Platform)
	if err != nil {
		return nil, err
	}

	evalCtx, cancel := context.WithTimeout(ctx, o.evalTimeout)
	defer cancel()

	result, err := evaluator.Evaluate(evalCtx, c)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	participants := result.Participants
	if o.identityFilter != nil {
		kept := make([]domain.ParticipantResult, 0, len(participants))
		for _, p := range participants {
			if o.identityFilter(p.ParticipantID) {
				kept = append(kept, p)
			} else {
				log.Printf("[orchestrator] campaign %s: dropping participant with invalid id %q", c.ID, p.ParticipantID)
			}
		}
		participants = kept
	}

	if o.metrics != nil {
		o.metrics.CampaignsEvaluated.Inc()
	}
	o.logf("campaign %s: frozen snapshot with %d participants", c.ID, len(participants))

	return &domain.Snapshot{
		SnapshotID: runid.SnapshotID(c.Pool, c.ID, now),
		Metadata: domain.SnapshotMetadata{
			CampaignID:     c.ID,
			Pool:           c.Pool,
			DailyBudgetUSD: c.DailyBudgetUSD(o.window.PeriodDays),
			CapturedAt:     now.UTC(),
		},
		Participants: participants,
	}, nil
}

// appendAudits stores the cycle audit records if a store is configured.
func (o *Orchestrator) appendAudits(ctx context.Context, audits []*domain.CampaignAudit) {
	if o.audits == nil || len(audits) == 0 {
		return
	}
	if err := o.audits.Append(ctx, audits); err != nil {
		log.Printf("[orchestrator] audit append failed: %v", err)
		if o.metrics != nil {
			o.metrics.AuditAppendErrors.Inc()
		}
		return
	}
	if o.metrics != nil {
		o.metrics.AuditRecordsStored.Add(float64(len(audits)))
	}
}

// buildAudits emits one record per frozen campaign. Campaigns with zero
// total raw score get a record with no participant rows.
func buildAudits(frozen []campaignSnapshot, matrix *domain.ScoreMatrix, now time.Time) []*domain.CampaignAudit {
	audits := make([]*domain.CampaignAudit, 0, len(frozen))
	for _, cs := range frozen {
		audit := &domain.CampaignAudit{
			RecordID: runid.AuditRecordID(cs.campaign.Pool, cs.campaign.ID, now),
			CycleAt:  now.UTC(),
			Metadata: domain.AuditMetadata{
				CampaignID:     cs.campaign.ID,
				Pool:           cs.campaign.Pool,
				DailyBudgetUSD: cs.snapshot.Metadata.DailyBudgetUSD,
			},
		}

		for _, p := range cs.snapshot.Participants {
			usd := matrix.Get(p.ParticipantID, cs.campaign.ID)
			if usd == 0 {
				continue
			}
			audit.ParticipantRewards = append(audit.ParticipantRewards, domain.ParticipantReward{
				ParticipantID:   p.ParticipantID,
				IdentitySet:     p.IdentitySet,
				EngagementUnits: p.EngagementUnits,
				RawScore:        p.RawScore,
				USDAmount:       usd,
			})
		}
		audit.Metadata.TotalParticipants = len(audit.ParticipantRewards)
		audits = append(audits, audit)
	}
	return audits
}

// snapshotUniverse returns the deduplicated participant ids across all
// frozen snapshots. The distribution service adds the treasury itself.
func snapshotUniverse(frozen []campaignSnapshot) []string {
	seen := make(map[string]struct{})
	var universe []string
	for _, cs := range frozen {
		for _, p := range cs.snapshot.Participants {
			if _, ok := seen[p.ParticipantID]; ok {
				continue
			}
			seen[p.ParticipantID] = struct{}{}
			universe = append(universe, p.ParticipantID)
		}
	}
	sort.Strings(universe)
	return universe
}

// skipReason maps a per-campaign error to a metric label.
func skipReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, registry.ErrUnknownPlatform):
		return "unknown_platform"
	default:
		return "evaluation"
	}
}

func (o *Orchestrator) logf(format string, args ...interface{}) {
	if o.verbose {
		log.Printf("[orchestrator] "+format, args...)
	}
}
