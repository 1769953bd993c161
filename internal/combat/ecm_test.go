package combat

import "testing"

func TestSeedForDeterministic(t *testing.T) {
	seedA := SeedFor("match-123", "shot-9", "target-4")
	seedB := SeedFor("match-123", "shot-9", "target-4")
	if seedA != seedB {
		t.Fatalf("expected identical seeds, got %d and %d", seedA, seedB)
	}
	if seedA == SeedFor("match-123", "shot-9", "target-5") {
		t.Fatalf("expected different target to alter the seed")
	}
	if SeedFor("ab", "c") == SeedFor("a", "bc") {
		t.Fatalf("separators must keep identifiers independent")
	}
}

func TestShouldDecoyBreakDeterministic(t *testing.T) {
	rollA := ShouldDecoyBreak("seed", "shot-1", "target-1", 0.5)
	rollB := ShouldDecoyBreak("seed", "shot-1", "target-1", 0.5)
	if rollA != rollB {
		t.Fatalf("expected deterministic outcome")
	}
}

func TestShouldDecoyBreakProbabilityBounds(t *testing.T) {
	if ShouldDecoyBreak("s", "m", "t", -1) {
		t.Fatalf("negative probability should not break")
	}
	if !ShouldDecoyBreak("s", "m", "t", 1.5) {
		t.Fatalf("probability >= 1 should always break")
	}
}

func TestDecoyWindowDecay(t *testing.T) {
	window := Catalog().Countermeasures.Decoy.Window()
	cases := []struct {
		elapsed int
		want    float64
	}{
		{-3, 0.5}, {0, 0.5}, {15, 0.5}, {20, 0.4}, {29, 0.22}, {30, 0},
	}
	for _, tc := range cases {
		if got := window.ProbabilityAt(tc.elapsed); !near(got, tc.want) {
			t.Fatalf("elapsed %d: expected %.2f, got %.4f", tc.elapsed, tc.want, got)
		}
	}
}

func TestDecoyTrackerExpires(t *testing.T) {
	tracker := NewDecoyTracker(Catalog().Countermeasures.Decoy.Window())
	tracker.Launch("s1", 100)
	if got := tracker.BreakProbability("s1", 110); got != 0.5 {
		t.Fatalf("expected plateau probability, got %.2f", got)
	}
	if got := tracker.BreakProbability("ghost", 110); got != 0.5 {
		t.Fatalf("untracked decoys fall back to the initial probability, got %.2f", got)
	}
	if expired := tracker.Expire(129); len(expired) != 0 {
		t.Fatalf("decoy expired early: %v", expired)
	}
	expired := tracker.Expire(130)
	if len(expired) != 1 || expired[0] != "s1" || tracker.Len() != 0 {
		t.Fatalf("expected s1 to expire, got %v", expired)
	}
}
