// Package anomaly evaluates individual login events against a user's
// recent baseline. Scoring is pure and deterministic; the Detector wires
// it to the stores and handles event emission.
package anomaly

import (
	"math"

	"github.com/riskwatch/riskwatch/internal/geo"
)

const (
	scoreNewDevice        = 30
	scoreIPChanged        = 20
	scoreCountryChanged   = 40
	scoreCityChanged      = 20
	scoreUnusualTime      = 15
	scoreRecentFailures   = 30
	scoreImprobableTravel = 20

	suspiciousThreshold = 50
	highSeverityScore   = 80

	unusualHourDeviation = 6.0
	recentFailureTrigger = 3
)

// Observation is the evaluated login plus the baseline facts gathered
// from the user's history. Unknown facts are left at their zero value and
// the corresponding rules contribute nothing.
type Observation struct {
	IP       string
	Location geo.Location
	Hour     int

	KnownDevice      bool
	PriorDeviceCount int
	LastSuccessIP    string
	DeviceLocations  []geo.Location
	LastLocation     geo.Location

	HasLoginHistory bool
	MeanLoginHour   float64

	RecentFailures int
}

// Verdict is the outcome of scoring one login observation.
type Verdict struct {
	RiskScore          int      `json:"risk_score"`
	IsSuspicious       bool     `json:"is_suspicious"`
	Reasons            []string `json:"reasons"`
	RecommendedActions []string `json:"recommended_actions"`
}

// Score applies the additive anomaly rules to one observation. Each rule
// contributes an independent increment; the order of evaluation never
// changes the result. locationThresholdKm gates the travel-distance rule.
func Score(obs Observation, locationThresholdKm float64) Verdict {
	var v Verdict

	// A user's first ever device is the baseline, not a deviation from it.
	if !obs.KnownDevice && obs.PriorDeviceCount > 0 {
		v.RiskScore += scoreNewDevice
		v.Reasons = append(v.Reasons, "new device")
	}

	if obs.LastSuccessIP != "" && obs.IP != obs.LastSuccessIP {
		v.RiskScore += scoreIPChanged
		v.Reasons = append(v.Reasons, "IP changed")
	}

	if countryChanged(obs.Location, obs.DeviceLocations) {
		v.RiskScore += scoreCountryChanged
		v.Reasons = append(v.Reasons, "location anomaly")
		if cityChanged(obs.Location, obs.DeviceLocations) {
			v.RiskScore += scoreCityChanged
		}
	} else if improbableTravel(obs.Location, obs.LastLocation, locationThresholdKm) {
		v.RiskScore += scoreImprobableTravel
		v.Reasons = append(v.Reasons, "improbable travel distance")
	}

	if obs.HasLoginHistory && hourDeviation(float64(obs.Hour), obs.MeanLoginHour) > unusualHourDeviation {
		v.RiskScore += scoreUnusualTime
		v.Reasons = append(v.Reasons, "unusual time")
	}

	if obs.RecentFailures >= recentFailureTrigger {
		v.RiskScore += scoreRecentFailures
		v.Reasons = append(v.Reasons, "frequent recent failures")
	}

	v.IsSuspicious = v.RiskScore >= suspiciousThreshold
	v.RecommendedActions = recommendedActions(v.RiskScore)
	return v
}

func recommendedActions(score int) []string {
	switch {
	case score >= highSeverityScore:
		return []string{
			"require step-up authentication",
			"alert the user",
			"temporarily restrict sensitive features",
		}
	case score >= suspiciousThreshold:
		return []string{
			"notify the user",
			"request device verification",
		}
	default:
		return nil
	}
}

// countryChanged reports whether the attempt's country matches none of the
// devices' last known countries. Missing countries on either side make the
// rule contribute nothing.
func countryChanged(loc geo.Location, known []geo.Location) bool {
	if loc.Country == "" {
		return false
	}
	seen := false
	for _, k := range known {
		if k.Country == "" {
			continue
		}
		seen = true
		if k.SameCountry(loc) {
			return false
		}
	}
	return seen
}

func cityChanged(loc geo.Location, known []geo.Location) bool {
	if loc.City == "" {
		return false
	}
	for _, k := range known {
		if k.City != "" && k.SameCity(loc) {
			return false
		}
	}
	return true
}

// improbableTravel reports whether the attempt sits further than
// thresholdKm from the previous attempt's coordinates.
func improbableTravel(loc, last geo.Location, thresholdKm float64) bool {
	if thresholdKm <= 0 || !loc.HasCoordinates() || !last.HasCoordinates() {
		return false
	}
	return geo.HaversineKm(loc.Latitude, loc.Longitude, last.Latitude, last.Longitude) > thresholdKm
}

// hourDeviation returns the circular distance between two hours of day,
// in the range [0, 12].
func hourDeviation(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > 12 {
		d = 24 - d
	}
	return d
}

// MeanLoginHour computes the circular mean of the given hours of day.
// The boolean is false when hours is empty.
func MeanLoginHour(hours []int) (float64, bool) {
	if len(hours) == 0 {
		return 0, false
	}
	var sinSum, cosSum float64
	for _, h := range hours {
		rad := float64(h) / 24 * 2 * math.Pi
		sinSum += math.Sin(rad)
		cosSum += math.Cos(rad)
	}
	mean := math.Atan2(sinSum, cosSum) / (2 * math.Pi) * 24
	if mean < 0 {
		mean += 24
	}
	return mean, true
}
