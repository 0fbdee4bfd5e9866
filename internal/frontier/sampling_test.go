package frontier

import (
	"math/rand"
	"testing"
)

func TestReservoirSampleLReturnsDistinctIndicesInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const n, k = 10000, 200
	sample := reservoirSampleL(rng, n, k)
	if len(sample) != k {
		t.Fatalf("len(sample) = %d, want %d", len(sample), k)
	}
	seen := make(map[int64]bool, k)
	for _, idx := range sample {
		if idx < 0 || idx >= n {
			t.Fatalf("sampled index %d out of range [0,%d)", idx, n)
		}
		if seen[idx] {
			t.Fatalf("sampled index %d returned twice", idx)
		}
		seen[idx] = true
	}
}

func TestReservoirSampleLWhenKExceedsN(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	sample := reservoirSampleL(rng, 5, 10)
	if len(sample) != 5 {
		t.Fatalf("len(sample) = %d, want 5 (capped at n)", len(sample))
	}
}

// TestReservoirSampleLDistributionIsApproximatelyUniform checks that
// the empirical distribution of sampled indices over many runs stays
// within statistical tolerance of uniform: repeatedly sampling small
// reservoirs from a small population should hit every index with
// roughly equal frequency.
func TestReservoirSampleLDistributionIsApproximatelyUniform(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const n, k = 10, 3
	const trials = 20000

	counts := make([]int, n)
	for i := 0; i < trials; i++ {
		sample := reservoirSampleL(rng, n, k)
		for _, idx := range sample {
			counts[idx]++
		}
	}

	expected := float64(trials*k) / float64(n)
	for i, c := range counts {
		deviation := float64(c) - expected
		if deviation < 0 {
			deviation = -deviation
		}
		if deviation/expected > 0.15 {
			t.Errorf("index %d sampled %d times, want close to %.0f (>15%% deviation)", i, c, expected)
		}
	}
}
