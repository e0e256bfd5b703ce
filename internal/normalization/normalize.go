// Package normalization provides simplex normalization and the
// deterministic residual rule shared by every normalization step in
// the reward pipeline.
package normalization

import "sort"

// Normalize scales raw values so they sum to 1 over the given
// universe. Universe members absent from raw get weight 0. When the
// raw sum is zero the result is an all-zero map over the universe —
// a valid state, not an error.
func Normalize(raw map[string]float64, universe []string) map[string]float64 {
	out := make(map[string]float64, len(universe))

	var sum float64
	for _, id := range universe {
		sum += raw[id]
	}

	for _, id := range universe {
		if sum == 0 {
			out[id] = 0
			continue
		}
		out[id] = raw[id] / sum
	}
	return out
}

// AssignResidual adds (target - sum) to the entry selected by
// ResidualRecipient so the map sums to target exactly. No-op on an
// empty map or when every value is zero.
func AssignResidual(weights map[string]float64, target float64) {
	id := ResidualRecipient(weights)
	if id == "" {
		return
	}

	var sum float64
	for _, w := range weights {
		sum += w
	}
	weights[id] += target - sum
}

// ResidualRecipient returns the id carrying the largest weight,
// breaking ties by lowest id. Returns "" when the map is empty or
// holds only zeros, in which case no residual may be assigned.
func ResidualRecipient(weights map[string]float64) string {
	ids := make([]string, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var best string
	var bestWeight float64
	for _, id := range ids {
		if weights[id] > bestWeight {
			best = id
			bestWeight = weights[id]
		}
	}
	return best
}
