package helper

import (
	"testing"

	"golang.org/x/exp/rand"
)

func TestSampleUnique(t *testing.T) {
	pool := make([]int, 0, 90)
	for n := 1; n <= 90; n++ {
		pool = append(pool, n)
	}
	inPool := make(map[int]bool, len(pool))
	for _, n := range pool {
		inPool[n] = true
	}

	for seed := uint64(1); seed <= 50; seed++ {
		rng := rand.New(rand.NewSource(seed))
		out := SampleUnique(rng, pool, 6)
		if len(out) != 6 {
			t.Fatalf("seed %d: len = %d", seed, len(out))
		}
		seen := make(map[int]bool)
		for _, n := range out {
			if !inPool[n] {
				t.Fatalf("seed %d: %d not in pool", seed, n)
			}
			if seen[n] {
				t.Fatalf("seed %d: duplicate %d", seed, n)
			}
			seen[n] = true
		}
	}
}

func TestSampleUniqueSmallPool(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	pool := []int{4, 8, 15}
	out := SampleUnique(rng, pool, 6)
	if len(out) != len(pool) {
		t.Fatalf("n beyond pool size must return whole pool, got %v", out)
	}
	seen := make(map[int]bool)
	for _, n := range out {
		seen[n] = true
	}
	for _, n := range pool {
		if !seen[n] {
			t.Fatalf("missing %d in %v", n, out)
		}
	}
	// 原池子不被打乱
	if pool[0] != 4 || pool[1] != 8 || pool[2] != 15 {
		t.Fatalf("pool mutated: %v", pool)
	}
}
