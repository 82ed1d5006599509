package assessment

import (
	"fmt"
	"testing"

	"github.com/riskwatch/riskwatch/internal/common/config"
	"github.com/riskwatch/riskwatch/internal/eventstore"
	"github.com/riskwatch/riskwatch/internal/geo"
)

func defaultThresholds() config.RiskConfig {
	return config.RiskConfig{LowThreshold: 30, MediumThreshold: 60, HighThreshold: 80}
}

func suspiciousEvent(deviceID, country string) eventstore.SecurityEvent {
	return eventstore.SecurityEvent{
		EventType: eventstore.EventSuspiciousLogin,
		DeviceID:  deviceID,
		Details:   eventstore.EventDetails{Location: geo.Location{Country: country}},
	}
}

func failureEvent() eventstore.SecurityEvent {
	return eventstore.SecurityEvent{EventType: eventstore.EventBruteForce}
}

func TestComputeFactorsEmptyWindow(t *testing.T) {
	factors := ComputeFactors(nil)
	if len(factors) != 4 {
		t.Fatalf("expected 4 factors, got %d", len(factors))
	}
	if score := ScoreFactors(factors); score != 0 {
		t.Errorf("empty window score = %d, want 0", score)
	}

	var weightSum float64
	for _, f := range factors {
		if f.RawScore != 0 {
			t.Errorf("factor %s raw score = %v, want 0", f.Name, f.RawScore)
		}
		weightSum += f.Weight
	}
	if weightSum != 1.0 {
		t.Errorf("weights sum to %v, want 1.0", weightSum)
	}
}

func TestComputeFactorsCaps(t *testing.T) {
	var events []eventstore.SecurityEvent
	for i := 0; i < 20; i++ {
		events = append(events, failureEvent())
		events = append(events, suspiciousEvent(fmt.Sprintf("dev-%d", i), fmt.Sprintf("country-%d", i)))
	}

	factors := ComputeFactors(events)
	wantCaps := map[string]float64{
		"login_failure_frequency": 40,
		"suspicious_activity":     50,
		"device_diversity":        30,
		"location_diversity":      25,
	}
	for _, f := range factors {
		if want, ok := wantCaps[f.Name]; !ok {
			t.Errorf("unexpected factor %q", f.Name)
		} else if f.RawScore != want {
			t.Errorf("factor %s raw score = %v, want cap %v", f.Name, f.RawScore, want)
		}
	}

	// Fully saturated factors give the maximum composite score.
	if score := ScoreFactors(factors); score != 41 {
		t.Errorf("saturated score = %d, want 41", score)
	}
}

func TestScoreFactorsMixedActivity(t *testing.T) {
	// 3 suspicious events across 2 distinct devices, nothing else.
	events := []eventstore.SecurityEvent{
		suspiciousEvent("dev-a", ""),
		suspiciousEvent("dev-a", ""),
		suspiciousEvent("dev-b", ""),
	}

	factors := ComputeFactors(events)
	score := ScoreFactors(factors)

	// round(min(3*15,50)*0.4 + min(2*5,30)*0.2) = round(18 + 2)
	if score != 20 {
		t.Fatalf("score = %d, want 20", score)
	}
	if level := ClassifyLevel(score, defaultThresholds()); level != LevelLow {
		t.Errorf("level = %s, want low", level)
	}
}

func TestClassifyLevelPartitionsFullRange(t *testing.T) {
	cfg := defaultThresholds()

	// Every score in [0,100] maps to exactly one level and the level is
	// monotonically non-decreasing in the score.
	order := map[Level]int{LevelLow: 0, LevelMedium: 1, LevelHigh: 2, LevelCritical: 3}
	prev := LevelLow
	seen := map[Level]bool{}
	for score := 0; score <= 100; score++ {
		level := ClassifyLevel(score, cfg)
		if order[level] < order[prev] {
			t.Fatalf("level regressed from %s to %s at score %d", prev, level, score)
		}
		seen[level] = true
		prev = level
	}
	if len(seen) != 4 {
		t.Errorf("expected all 4 levels over [0,100], saw %v", seen)
	}

	boundaries := []struct {
		score int
		want  Level
	}{
		{0, LevelLow}, {29, LevelLow},
		{30, LevelMedium}, {59, LevelMedium},
		{60, LevelHigh}, {79, LevelHigh},
		{80, LevelCritical}, {100, LevelCritical},
	}
	for _, b := range boundaries {
		if got := ClassifyLevel(b.score, cfg); got != b.want {
			t.Errorf("ClassifyLevel(%d) = %s, want %s", b.score, got, b.want)
		}
	}
}

func TestRecommendationsPerLevel(t *testing.T) {
	critical := Recommendations(LevelCritical)
	if len(critical) != 4 {
		t.Errorf("critical recommendations = %v", critical)
	}
	high := Recommendations(LevelHigh)
	if len(high) != 3 {
		t.Errorf("high recommendations = %v", high)
	}
	if len(Recommendations(LevelLow)) == 0 {
		t.Error("low level should still carry guidance")
	}
}
