package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/riskwatch/riskwatch/internal/anomaly"
	"github.com/riskwatch/riskwatch/internal/assessment"
	"github.com/riskwatch/riskwatch/internal/common/config"
	"github.com/riskwatch/riskwatch/internal/device"
	"github.com/riskwatch/riskwatch/internal/engine"
	"github.com/riskwatch/riskwatch/internal/eventstore"
	"github.com/riskwatch/riskwatch/internal/login"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		ServiceName: "risk-service",
		Risk: config.RiskConfig{
			MaxFailedAttempts:    5,
			BruteForceWindowMin:  60,
			LowThreshold:         30,
			MediumThreshold:      60,
			HighThreshold:        80,
			SuspiciousLocationKm: 100,
			EventWindowDays:      7,
			AttemptCacheSize:     1000,
		},
	}
	log := zap.NewNop()
	events := eventstore.NewMemoryStore()
	attempts := login.NewMemoryStore(cfg.Risk.AttemptCacheSize)
	registry := device.NewRegistry(device.NewMemoryStore(), nil, nil, log)
	detector := anomaly.NewDetector(attempts, events, cfg.Risk, log)
	risk := assessment.NewEngine(events, nil, cfg.Risk, nil, log)
	pipeline := engine.New(registry, detector, risk, attempts, nil, cfg.Risk, log)

	router := gin.New()
	NewServer(pipeline, registry, risk, events, cfg, log).RegisterRoutes(router)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func loginBody(userID, ip, country string, success bool) map[string]interface{} {
	return map[string]interface{}{
		"user_id": userID,
		"ip":      ip,
		"success": success,
		"signals": map[string]string{
			"user_agent":        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0.0.0 Safari/537.36",
			"language":          "en-US",
			"platform":          "Win32",
			"screen_resolution": "1920x1080",
			"color_depth":       "24",
			"timezone":          "Europe/Berlin",
		},
		"location": map[string]interface{}{"country": country},
	}
}

func TestProcessLoginEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/logins", loginBody("user1", "1.2.3.4", "Germany", true))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res engine.LoginResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.NewDevice)
	require.NotNil(t, res.Device)
	assert.Equal(t, "user1", res.Device.UserID)
	require.NotNil(t, res.Assessment)
	assert.Equal(t, assessment.LevelLow, res.Assessment.RiskLevel)
}

func TestProcessLoginEndpointRejectsMissingUser(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/logins", loginBody("", "1.2.3.4", "Germany", true))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp["error"])
}

func TestDeviceLifecycleEndpoints(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/logins", loginBody("user1", "1.2.3.4", "Germany", true))
	require.Equal(t, http.StatusOK, w.Code)
	var res engine.LoginResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	deviceID := res.Device.DeviceID

	w = doJSON(t, router, http.MethodGet, "/v1/users/user1/devices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listing struct {
		Devices []device.Record `json:"devices"`
		Count   int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	require.Equal(t, 1, listing.Count)

	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/v1/users/user1/devices/%s/trust", deviceID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/v1/devices/%s/verify", deviceID),
		map[string]string{"fingerprint": res.Device.Fingerprint})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"verified":true`)

	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/v1/users/user1/devices/%s/revoke", deviceID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodPost, fmt.Sprintf("/v1/devices/%s/verify", deviceID),
		map[string]string{"fingerprint": res.Device.Fingerprint})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"verified":false`)
}

func TestAssessmentEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/v1/users/anyone/assessment", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var a assessment.Assessment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &a))
	assert.Equal(t, assessment.LevelLow, a.RiskLevel)
	assert.Len(t, a.Factors, 4)
}

func TestEventQueryEndpointValidatesParams(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/v1/users/user1/events?since=yesterday", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/v1/users/user1/events?limit=-3", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/v1/users/user1/events", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestMarkAlertReadEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/alerts/nonexistent/read", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
