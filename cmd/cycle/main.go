// Package main provides a one-shot reward cycle runner over in-memory
// stores and stub collaborators. Useful for demos and debugging the
// cycle math without any external services.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"reward-engine/internal/aggregation"
	"reward-engine/internal/distribution"
	"reward-engine/internal/domain"
	"reward-engine/internal/emission"
	evalstub "reward-engine/internal/evaluator/stub"
	"reward-engine/internal/orchestrator"
	pubstub "reward-engine/internal/publisher/stub"
	"reward-engine/internal/registry"
	"reward-engine/internal/storage/memory"
)

func main() {
	treasuryID := flag.String("treasury-id", "treasury", "Treasury participant id")
	treasuryPct := flag.Float64("treasury-pct", 0.01, "Treasury carve-out share in [0,1]")
	delayDays := flag.Int("delay-days", 2, "Days to wait after campaign end before scoring")
	periodDays := flag.Int("period-days", 7, "Emission period length in days")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived signal %v, cancelling cycle...\n", sig)
		cancel()
	}()

	now := time.Now().UTC()

	// Canned campaigns: one per platform, both inside the reward window.
	endDate := now.AddDate(0, 0, -*delayDays)
	source := pubstub.NewCampaignSource(
		&domain.Campaign{ID: "demo-brief-1", Pool: "main", Platform: "youtube", BudgetUSD: 7000, EndDate: endDate},
		&domain.Campaign{ID: "demo-brief-2", Pool: "main", Platform: "x", BudgetUSD: 700, EndDate: endDate},
	)

	reg := registry.New()
	reg.Register(evalstub.New("youtube").WithResult("demo-brief-1", &domain.EvaluationResult{
		CampaignID: "demo-brief-1",
		Participants: []domain.ParticipantResult{
			{ParticipantID: "alice", IdentitySet: []string{"@alice"}, EngagementUnits: 3, RawScore: 0.6},
			{ParticipantID: "bob", IdentitySet: []string{"@bob"}, EngagementUnits: 1, RawScore: 0.4},
		},
	}))
	reg.Register(evalstub.New("x").WithResult("demo-brief-2", &domain.EvaluationResult{
		CampaignID: "demo-brief-2",
		Participants: []domain.ParticipantResult{
			{ParticipantID: "alice", IdentitySet: []string{"@alice_x"}, EngagementUnits: 2, RawScore: 1.0},
		},
	}))

	rates, err := emission.NewFixedRateSource(1.0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Rate source error: %v\n", err)
		os.Exit(1)
	}

	dist, err := distribution.NewService(distribution.TreasuryConfig{
		Pct:           *treasuryPct,
		ParticipantID: *treasuryID,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Distribution error: %v\n", err)
		os.Exit(1)
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Campaigns:    source,
		Registry:     reg,
		Snapshots:    memory.NewSnapshotStore(),
		Audits:       memory.NewAuditStore(),
		Aggregation:  aggregation.NewService(*periodDays).WithVerbose(*verbose),
		Emission:     emission.NewService(rates),
		Distribution: dist,
		Window:       domain.RewardWindow{DelayDays: *delayDays, PeriodDays: *periodDays},
		Verbose:      *verbose,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Orchestrator error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Reward Cycle ===")
	weights, audits, err := orch.RunCycle(ctx, now)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cycle error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Cycle completed:\n")
	fmt.Printf("  Campaigns audited: %d\n", len(audits))
	fmt.Printf("  Participants weighted: %d\n", weights.NonZero())
	fmt.Printf("  Weight sum: %.12f\n", weights.Sum())

	ids := make([]string, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Println("\nFinal weights:")
	for _, id := range ids {
		fmt.Printf("  %-12s %.9f\n", id, weights[id])
	}

	fmt.Println("\nPer-campaign payouts:")
	for _, a := range audits {
		fmt.Printf("  %s ($%.2f/day):\n", a.Metadata.CampaignID, a.Metadata.DailyBudgetUSD)
		for _, p := range a.ParticipantRewards {
			fmt.Printf("    %-12s $%.2f (score %.3f)\n", p.ParticipantID, p.USDAmount, p.RawScore)
		}
	}
}
