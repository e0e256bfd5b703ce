package normalization

import (
	"math"
	"testing"
)

func TestNormalize_Proportional(t *testing.T) {
	raw := map[string]float64{"p1": 3, "p2": 1}
	universe := []string{"p1", "p2", "p3"}

	got := Normalize(raw, universe)

	if got["p1"] != 0.75 {
		t.Errorf("p1 = %f, want 0.75", got["p1"])
	}
	if got["p2"] != 0.25 {
		t.Errorf("p2 = %f, want 0.25", got["p2"])
	}
	if got["p3"] != 0 {
		t.Errorf("p3 = %f, want 0 (no raw value)", got["p3"])
	}
}

func TestNormalize_ZeroSum(t *testing.T) {
	got := Normalize(map[string]float64{}, []string{"p1", "p2"})

	for id, w := range got {
		if w != 0 {
			t.Errorf("%s = %f, want 0 for zero raw sum", id, w)
		}
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want full universe coverage", len(got))
	}
}

func TestResidualRecipient_LargestWins(t *testing.T) {
	weights := map[string]float64{"p1": 0.2, "p2": 0.5, "p3": 0.3}
	if got := ResidualRecipient(weights); got != "p2" {
		t.Errorf("ResidualRecipient = %q, want p2", got)
	}
}

func TestResidualRecipient_LowestIDTiebreak(t *testing.T) {
	weights := map[string]float64{"p9": 0.5, "p2": 0.5}
	if got := ResidualRecipient(weights); got != "p2" {
		t.Errorf("ResidualRecipient = %q, want p2 (lowest id on tie)", got)
	}
}

func TestResidualRecipient_AllZero(t *testing.T) {
	weights := map[string]float64{"p1": 0, "p2": 0}
	if got := ResidualRecipient(weights); got != "" {
		t.Errorf("ResidualRecipient = %q, want empty for all-zero map", got)
	}
}

func TestAssignResidual_ExactSum(t *testing.T) {
	// Values chosen so naive summation drifts from 1.0.
	weights := map[string]float64{"p1": 0.1, "p2": 0.2, "p3": 0.3, "p4": 0.4}
	weights["p4"] -= 1e-12 // inject drift

	AssignResidual(weights, 1.0)

	var sum float64
	for _, w := range weights {
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-12 {
		t.Errorf("sum = %.17f, want 1.0", sum)
	}
}

func TestAssignResidual_EmptyAndZero(t *testing.T) {
	empty := map[string]float64{}
	AssignResidual(empty, 1.0)
	if len(empty) != 0 {
		t.Error("AssignResidual must not grow an empty map")
	}

	zeros := map[string]float64{"p1": 0}
	AssignResidual(zeros, 1.0)
	if zeros["p1"] != 0 {
		t.Error("AssignResidual must not assign residual to an all-zero vector")
	}
}

func TestAssignResidual_NoNaN(t *testing.T) {
	weights := map[string]float64{"p1": 0.6, "p2": 0.4}
	AssignResidual(weights, 1.0)
	for id, w := range weights {
		if math.IsNaN(w) {
			t.Errorf("%s is NaN", id)
		}
	}
}
