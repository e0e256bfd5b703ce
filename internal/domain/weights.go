package domain

// WeightVector maps participant id -> final chain weight in [0,1].
// Sums to 1.0 whenever the participant universe is nonempty and any
// participant earned a nonzero target this cycle.
type WeightVector map[string]float64

// Sum returns the total weight.
func (v WeightVector) Sum() float64 {
	var total float64
	for _, w := range v {
		total += w
	}
	return total
}

// NonZero returns the number of participants with a nonzero weight.
func (v WeightVector) NonZero() int {
	var n int
	for _, w := range v {
		if w != 0 {
			n++
		}
	}
	return n
}
