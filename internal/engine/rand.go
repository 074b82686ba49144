package engine

// randStream is the scheduler's explicit pseudo-random state. Two schedulers
// seeded identically draw identical streams regardless of what any other
// scheduler instance does, which keeps solves bit-reproducible.
//
// The generator is the classic 9301/49297 linear-congruential step over a
// 233280 modulus; values land in [0, 1).
type randStream struct {
	seed int64
}

func newRandStream(seed int64) *randStream {
	seed %= 233280
	if seed < 0 {
		seed += 233280
	}
	return &randStream{seed: seed}
}

func (r *randStream) next() float64 {
	r.seed = (r.seed*9301 + 49297) % 233280
	return float64(r.seed) / 233280
}

func (r *randStream) intn(n int) int {
	if n <= 0 {
		return 0
	}
	v := int(r.next() * float64(n))
	if v >= n {
		v = n - 1
	}
	return v
}

// shufflePeriods Fisher-Yates shuffles in place using the stream.
func (r *randStream) shufflePeriods(periods []Period) {
	for i := len(periods) - 1; i > 0; i-- {
		j := r.intn(i + 1)
		periods[i], periods[j] = periods[j], periods[i]
	}
}

func (r *randStream) shuffleStrings(values []string) {
	for i := len(values) - 1; i > 0; i-- {
		j := r.intn(i + 1)
		values[i], values[j] = values[j], values[i]
	}
}
