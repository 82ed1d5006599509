package config

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("risk-service")
	require.NoError(t, err)

	assert.Equal(t, "risk-service", cfg.ServiceName)
	assert.Equal(t, 5, cfg.Risk.MaxFailedAttempts)
	assert.Equal(t, time.Hour, cfg.Risk.BruteForceWindow())
	assert.Equal(t, 7*24*time.Hour, cfg.Risk.EventWindow())
	assert.Equal(t, 30, cfg.Risk.LowThreshold)
	assert.Equal(t, 60, cfg.Risk.MediumThreshold)
	assert.Equal(t, 80, cfg.Risk.HighThreshold)
	assert.Equal(t, float64(100), cfg.Risk.SuspiciousLocationKm)
	assert.Equal(t, 1000, cfg.Risk.AttemptCacheSize)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RISKWATCH_RISK_MAX_FAILED_ATTEMPTS", "3")
	t.Setenv("RISKWATCH_PORT", "9999")

	cfg, err := Load("risk-service")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Risk.MaxFailedAttempts)
	assert.Equal(t, 9999, cfg.Port)
}

func TestValidateRejectsZeroLockoutDuration(t *testing.T) {
	t.Setenv("RISKWATCH_RISK_LOCKOUT_DURATION_MINUTES", "0")

	_, err := Load("risk-service")
	assert.Error(t, err)
}

func TestValidateRejectsBrokenThresholds(t *testing.T) {
	cases := []struct {
		name              string
		low, medium, high int
	}{
		{"low above medium", 60, 30, 80},
		{"medium above high", 30, 90, 80},
		{"zero low", 0, 60, 80},
		{"high above range", 30, 60, 120},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("RISKWATCH_RISK_LOW_THRESHOLD", strconv.Itoa(tc.low))
			t.Setenv("RISKWATCH_RISK_MEDIUM_THRESHOLD", strconv.Itoa(tc.medium))
			t.Setenv("RISKWATCH_RISK_HIGH_THRESHOLD", strconv.Itoa(tc.high))

			_, err := Load("risk-service")
			assert.Error(t, err)
		})
	}
}
