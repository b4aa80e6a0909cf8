package labeler

import "math/rand/v2"

// Jitter yields the per-row uncertainty term added to a rubric score.
type Jitter interface {
	Draw() int
}

// SeededJitter draws -1, 0 or +1 with probabilities 0.15, 0.70 and 0.15 from a
// sequential stream. Two instances built from the same seed produce the same
// sequence, so rows must be labelled in a stable order for results to repeat.
// It is not safe for concurrent use.
type SeededJitter struct {
	rng *rand.Rand
}

func NewSeededJitter(seed int64) *SeededJitter {
	return &SeededJitter{rng: rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))}
}

func (j *SeededJitter) Draw() int {
	u := j.rng.Float64()
	switch {
	case u < 0.15:
		return -1
	case u < 0.85:
		return 0
	default:
		return 1
	}
}

// FixedJitter always returns the same term. FixedJitter(0) disables jitter.
type FixedJitter int

func (f FixedJitter) Draw() int { return int(f) }
