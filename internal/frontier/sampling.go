package frontier

import (
	"math"
	"math/rand"
)

// reservoirSampleL draws k distinct indices uniformly at random from
// [0, n) using Reservoir Sampling Algorithm L (Li, 1994): O(k(1 +
// log(n/k))) expected, without ever materializing the full index range.
// The stream sampled here is the identity sequence 0..n-1 standing in
// for "index into the queued record vector".
func reservoirSampleL(rng *rand.Rand, n, k int64) []int64 {
	if k <= 0 || n <= 0 {
		return nil
	}
	if k >= n {
		all := make([]int64, n)
		for i := range all {
			all[i] = int64(i)
		}
		return all
	}

	reservoir := make([]int64, k)
	for i := int64(0); i < k; i++ {
		reservoir[i] = i
	}

	w := math.Exp(nonZeroLog(rng) / float64(k))
	i := k - 1
	for i < n-1 {
		skip := int64(math.Log(nonZeroFloat(rng)) / math.Log(1-w))
		i += skip + 1
		if i < n {
			reservoir[rng.Int63n(k)] = i
		}
		w *= math.Exp(nonZeroLog(rng) / float64(k))
	}
	return reservoir
}

// nonZeroFloat returns a float64 in (0, 1), retrying the vanishingly
// rare rng.Float64() == 0 case that would otherwise make log(x) = -Inf.
func nonZeroFloat(rng *rand.Rand) float64 {
	for {
		if v := rng.Float64(); v > 0 {
			return v
		}
	}
}

func nonZeroLog(rng *rand.Rand) float64 {
	return math.Log(nonZeroFloat(rng))
}
