package config

import "testing"

func TestRoundDurationDefaults(t *testing.T) {
	var c Config
	if got := c.RoundDurationMS(); got != 180000 {
		t.Fatalf("default round duration = %d, want 180000", got)
	}
	if got := c.BreakMS(); got != 30000 {
		t.Fatalf("default break = %d, want 30000", got)
	}

	c.Lottery.RoundDurationSec = 60
	c.Lottery.BreakSec = 10
	if got := c.RoundDurationMS(); got != 60000 {
		t.Fatalf("round duration = %d, want 60000", got)
	}
	if got := c.BreakMS(); got != 10000 {
		t.Fatalf("break = %d, want 10000", got)
	}
}

func TestStateAccessors(t *testing.T) {
	old := GetCurrent()
	defer SetCurrent(old)

	c := &Config{}
	c.FeatureFlags = map[string]bool{"new_draw": true}
	c.Thresholds = map[string]int64{"max_rounds": 9}
	SetCurrent(c)

	if !GetFeatureFlag("new_draw") {
		t.Fatalf("feature flag lost")
	}
	if GetFeatureFlag("missing") {
		t.Fatalf("missing flag must be false")
	}
	if got := GetThreshold("max_rounds", 1); got != 9 {
		t.Fatalf("threshold = %d, want 9", got)
	}
	if got := GetThreshold("missing", 42); got != 42 {
		t.Fatalf("default threshold = %d, want 42", got)
	}
}
