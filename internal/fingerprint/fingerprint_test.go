package fingerprint

import (
	"testing"
)

func fullSignals() Signals {
	return Signals{
		UserAgent:  "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Language:   "en-US",
		Platform:   "Win32",
		ScreenRes:  "1920x1080",
		ColorDepth: "24",
		Timezone:   "America/New_York",
		CanvasHash: "c4nv4s",
		WebGLHash:  "w3bgl",
		AudioHash:  "aud10",
	}
}

func TestGenerateDeterministic(t *testing.T) {
	first := Generate(fullSignals())
	for i := 0; i < 10; i++ {
		again := Generate(fullSignals())
		if again.Hash != first.Hash {
			t.Fatalf("run %d: hash changed for identical signals: %s != %s", i, again.Hash, first.Hash)
		}
	}
	if first.Degraded {
		t.Errorf("full signal set marked degraded, missing = %v", first.Missing)
	}
	if len(first.Hash) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(first.Hash))
	}
}

func TestGenerateDistinguishesDevices(t *testing.T) {
	base := Generate(fullSignals())

	other := fullSignals()
	other.Platform = "MacIntel"
	other.Timezone = "Europe/Berlin"
	if got := Generate(other); got.Hash == base.Hash {
		t.Error("different platform and timezone produced the same hash")
	}
}

func TestGenerateBrowserUpdateKeepsHash(t *testing.T) {
	base := Generate(fullSignals())

	updated := fullSignals()
	updated.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	if got := Generate(updated); got.Hash != base.Hash {
		t.Error("browser version bump rotated the fingerprint")
	}
}

func TestGenerateMissingSignalsDegradeGracefully(t *testing.T) {
	sig := fullSignals()
	sig.CanvasHash = ""
	sig.WebGLHash = ""
	sig.AudioHash = ""
	fp := Generate(sig)
	if fp.Degraded {
		t.Errorf("optional render artifacts marked as core: %v", fp.Missing)
	}

	sig.Timezone = ""
	sig.ColorDepth = ""
	fp = Generate(sig)
	if !fp.Degraded {
		t.Error("missing core signals not flagged as degraded")
	}
	if len(fp.Missing) != 2 {
		t.Errorf("expected 2 missing signals, got %v", fp.Missing)
	}
	if fp.Hash == "" {
		t.Error("degraded input must still produce a hash")
	}

	empty := Generate(Signals{})
	if empty.Hash == "" {
		t.Error("fully empty signals must still produce a hash")
	}
	if len(empty.Missing) != 6 {
		t.Errorf("expected all 6 core signals missing, got %v", empty.Missing)
	}
}

func TestClassifyDevice(t *testing.T) {
	cases := []struct {
		ua   string
		want DeviceType
	}{
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0", DeviceDesktop},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) Mobile/15E148", DeviceMobile},
		{"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X)", DeviceTablet},
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8) Mobile Safari/537.36", DeviceMobile},
		{"Mozilla/5.0 (X11; Linux x86_64) Firefox/121.0", DeviceDesktop},
		{"", DeviceUnknown},
	}
	for _, tc := range cases {
		if got := ClassifyDevice(tc.ua); got != tc.want {
			t.Errorf("ClassifyDevice(%q) = %s, want %s", tc.ua, got, tc.want)
		}
	}
}

func TestDeviceName(t *testing.T) {
	ua := "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	if got := DeviceName(ua); got != "Chrome on macOS" {
		t.Errorf("DeviceName = %q, want %q", got, "Chrome on macOS")
	}
	ua = "Mozilla/5.0 (Windows NT 10.0) Gecko/20100101 Firefox/121.0"
	if got := DeviceName(ua); got != "Firefox on Windows" {
		t.Errorf("DeviceName = %q, want %q", got, "Firefox on Windows")
	}
}
