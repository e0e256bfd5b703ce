package domain

import "time"

// Campaign represents a published content brief with a USD budget,
// fetched read-only from the external publisher every cycle.
type Campaign struct {
	ID             string    // unique brief identifier
	Pool           string    // named participant cohort the campaign targets
	Platform       string    // target platform, resolved via the registry
	BudgetUSD      float64   // total campaign budget, >= 0
	EndDate        time.Time // UTC, day granularity; immutable once published
	ContentFilters []string  // optional content filter expressions (opaque to the core)
}

// DailyBudgetUSD returns the per-day budget over the emissions period.
func (c *Campaign) DailyBudgetUSD(periodDays int) float64 {
	if periodDays <= 0 {
		return 0
	}
	return c.BudgetUSD / float64(periodDays)
}

// RewardWindow defines the day-age interval during which a finished
// campaign is scored and rewarded. The window is half-open:
// a campaign is eligible iff DelayDays <= age < DelayDays+PeriodDays.
//
// Upstream prose describes the window as "2-9 days" inclusive, which is
// one day wider than a 7-day emission period implies. The half-open
// form is implemented deliberately; see DESIGN.md.
type RewardWindow struct {
	DelayDays  int // full days to wait after the campaign ends
	PeriodDays int // length of the emission period in days
}

// AgeDays returns the whole number of UTC days elapsed since end.
// Both timestamps are truncated to day granularity first.
func (w RewardWindow) AgeDays(end, now time.Time) int {
	endDay := end.UTC().Truncate(24 * time.Hour)
	nowDay := now.UTC().Truncate(24 * time.Hour)
	return int(nowDay.Sub(endDay).Hours() / 24)
}

// Contains reports whether a campaign of the given age is inside the window.
func (w RewardWindow) Contains(ageDays int) bool {
	return ageDays >= w.DelayDays && ageDays < w.DelayDays+w.PeriodDays
}

// Eligible reports whether the campaign is inside its reward window at now.
func (w RewardWindow) Eligible(c *Campaign, now time.Time) bool {
	return w.Contains(w.AgeDays(c.EndDate, now))
}
