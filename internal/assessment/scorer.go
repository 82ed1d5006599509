// Package assessment aggregates a user's recent security events into a
// weighted composite risk score and level. Scoring is pure; the Engine
// owns store access, alerting, and the current-assessment snapshot.
package assessment

import (
	"math"
	"time"

	"github.com/riskwatch/riskwatch/internal/common/config"
	"github.com/riskwatch/riskwatch/internal/eventstore"
)

// Level is a user's overall risk classification.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

// Factor is one weighted component of the composite score.
type Factor struct {
	Name        string  `json:"name"`
	RawScore    float64 `json:"raw_score"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

// Assessment is the current risk verdict for a user. It is derived state:
// recomputation from the event log always supersedes the previous value.
type Assessment struct {
	UserID           string    `json:"user_id"`
	OverallRiskScore int       `json:"overall_risk_score"`
	RiskLevel        Level     `json:"risk_level"`
	Factors          []Factor  `json:"factors"`
	Recommendations  []string  `json:"recommendations"`
	LastUpdated      time.Time `json:"last_updated"`
}

var failureEventTypes = map[eventstore.EventType]bool{
	eventstore.EventMultipleFailures: true,
	eventstore.EventBruteForce:       true,
}

// ComputeFactors derives the four weighted factors from an event window.
func ComputeFactors(events []eventstore.SecurityEvent) []Factor {
	var failures, suspicious int
	devices := make(map[string]bool)
	countries := make(map[string]bool)

	for _, ev := range events {
		if failureEventTypes[ev.EventType] {
			failures++
		} else {
			suspicious++
		}
		if ev.DeviceID != "" {
			devices[ev.DeviceID] = true
		}
		if c := ev.Details.Location.Country; c != "" {
			countries[c] = true
		}
	}

	return []Factor{
		{
			Name:        "login_failure_frequency",
			RawScore:    math.Min(float64(failures)*10, 40),
			Weight:      0.3,
			Description: "Frequency of failed login activity",
		},
		{
			Name:        "suspicious_activity",
			RawScore:    math.Min(float64(suspicious)*15, 50),
			Weight:      0.4,
			Description: "Volume of flagged suspicious activity",
		},
		{
			Name:        "device_diversity",
			RawScore:    math.Min(float64(len(devices))*5, 30),
			Weight:      0.2,
			Description: "Number of distinct devices involved",
		},
		{
			Name:        "location_diversity",
			RawScore:    math.Min(float64(len(countries))*8, 25),
			Weight:      0.1,
			Description: "Number of distinct countries involved",
		},
	}
}

// ScoreFactors folds weighted factors into the rounded composite score.
func ScoreFactors(factors []Factor) int {
	var sum float64
	for _, f := range factors {
		sum += f.RawScore * f.Weight
	}
	return int(math.Round(sum))
}

// ClassifyLevel maps a composite score to its risk level using the
// configured ascending thresholds.
func ClassifyLevel(score int, cfg config.RiskConfig) Level {
	switch {
	case score < cfg.LowThreshold:
		return LevelLow
	case score < cfg.MediumThreshold:
		return LevelMedium
	case score < cfg.HighThreshold:
		return LevelHigh
	default:
		return LevelCritical
	}
}

// Recommendations returns the remediation guidance for a risk level.
func Recommendations(level Level) []string {
	switch level {
	case LevelCritical:
		return []string{
			"rotate the account password immediately",
			"enable multi-factor authentication",
			"revoke all active sessions",
			"escalate to a security operator",
		}
	case LevelHigh:
		return []string{
			"consider rotating the account password",
			"review recent account activity",
			"enable multi-factor authentication",
		}
	case LevelMedium:
		return []string{
			"review recent account activity",
			"verify registered devices",
		}
	default:
		return []string{
			"no action required",
		}
	}
}
