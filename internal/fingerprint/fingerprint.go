// Package fingerprint derives stable device identifiers from
// client-observable signals. The hash is a similarity key for the device
// registry and anomaly rules, not an authentication credential.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Signals contains the device attributes observable by the telemetry
// boundary. Any field may be empty; missing signals are omitted from the
// hash input rather than failing generation.
type Signals struct {
	UserAgent  string `json:"user_agent"`
	Language   string `json:"language"`    // e.g., "en-US"
	Platform   string `json:"platform"`    // e.g., "Win32", "MacIntel"
	ScreenRes  string `json:"screen_resolution"` // e.g., "1920x1080"
	ColorDepth string `json:"color_depth"` // e.g., "24"
	Timezone   string `json:"timezone"`    // e.g., "America/New_York"
	CanvasHash string `json:"canvas_hash,omitempty"`
	WebGLHash  string `json:"webgl_hash,omitempty"`
	AudioHash  string `json:"audio_hash,omitempty"`
}

// Fingerprint is the result of hashing a signal set
type Fingerprint struct {
	Hash string
	// Degraded is set when one or more core signals were unavailable and
	// the hash was computed from a reduced input. Lower confidence, same
	// contract; callers log it and move on.
	Degraded bool
	Missing  []string
}

// Generate computes a deterministic SHA256 hash over the ordered,
// normalized signal set. Identical signals always produce identical
// hashes; unavailable signals are skipped, never an error.
func Generate(sig Signals) Fingerprint {
	type field struct {
		name  string
		value string
	}

	// Order is fixed; changing it changes every fingerprint
	fields := []field{
		{"user_agent", normalizeUserAgent(sig.UserAgent)},
		{"language", strings.ToLower(strings.TrimSpace(sig.Language))},
		{"platform", strings.TrimSpace(sig.Platform)},
		{"screen", normalizeScreenRes(sig.ScreenRes)},
		{"color_depth", strings.TrimSpace(sig.ColorDepth)},
		{"timezone", normalizeTimezone(sig.Timezone)},
		{"canvas", strings.TrimSpace(sig.CanvasHash)},
		{"webgl", strings.TrimSpace(sig.WebGLHash)},
		{"audio", strings.TrimSpace(sig.AudioHash)},
	}

	coreCount := 6 // everything before the optional render artifacts

	var parts []string
	var missing []string
	for i, f := range fields {
		if f.value == "" {
			if i < coreCount {
				missing = append(missing, f.name)
			}
			continue
		}
		parts = append(parts, f.value)
	}

	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))

	return Fingerprint{
		Hash:     hex.EncodeToString(hash[:]),
		Degraded: len(missing) > 0,
		Missing:  missing,
	}
}

// DeviceType buckets a user agent into a coarse device class
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceUnknown DeviceType = "unknown"
)

// ClassifyDevice determines the device type from a user agent
func ClassifyDevice(userAgent string) DeviceType {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return DeviceUnknown
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return DeviceTablet
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "iphone") || strings.Contains(ua, "android"):
		return DeviceMobile
	case strings.Contains(ua, "windows") || strings.Contains(ua, "macintosh") ||
		strings.Contains(ua, "mac os") || strings.Contains(ua, "linux") || strings.Contains(ua, "x11"):
		return DeviceDesktop
	default:
		return DeviceUnknown
	}
}

// ParseOS extracts a human-readable OS name from a user agent
func ParseOS(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "windows"):
		return "Windows"
	case strings.Contains(ua, "macintosh") || strings.Contains(ua, "mac os"):
		return "macOS"
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad"):
		return "iOS"
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "linux"):
		return "Linux"
	default:
		return "Unknown OS"
	}
}

// ParseBrowser extracts a human-readable browser name from a user agent
func ParseBrowser(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "edg/") || strings.Contains(ua, "edge/"):
		return "Edge"
	case strings.Contains(ua, "chrome/") && !strings.Contains(ua, "edg"):
		return "Chrome"
	case strings.Contains(ua, "firefox/"):
		return "Firefox"
	case strings.Contains(ua, "safari/") && !strings.Contains(ua, "chrome"):
		return "Safari"
	case strings.Contains(ua, "opera") || strings.Contains(ua, "opr/"):
		return "Opera"
	default:
		return "Browser"
	}
}

// DeviceName creates a human-readable name from a user agent, e.g.
// "Chrome on Windows"
func DeviceName(userAgent string) string {
	return ParseBrowser(userAgent) + " on " + ParseOS(userAgent)
}

var (
	browserVersionRe = regexp.MustCompile(`(chrome|firefox|safari|edge|edg|opera|opr)/\d+[\d.]*`)
	windowsNTRe      = regexp.MustCompile(`windows nt \d+\.\d+`)
	macOSRe          = regexp.MustCompile(`mac os x \d+_[\d_]+`)
	androidRe        = regexp.MustCompile(`android \d+\.\d+(\.\d+)?`)
)

// normalizeUserAgent strips fast-moving version components so a routine
// browser update does not rotate the fingerprint
func normalizeUserAgent(ua string) string {
	ua = strings.ToLower(strings.TrimSpace(ua))
	ua = browserVersionRe.ReplaceAllString(ua, "$1")
	ua = windowsNTRe.ReplaceAllString(ua, "windows nt")
	ua = macOSRe.ReplaceAllString(ua, "mac os x")
	ua = androidRe.ReplaceAllString(ua, "android")
	return ua
}

func normalizeScreenRes(res string) string {
	return strings.ToLower(strings.TrimSpace(res))
}

func normalizeTimezone(tz string) string {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return ""
	}
	if tz == "UTC" || tz == "GMT" {
		return "utc"
	}
	return strings.ToLower(tz)
}
