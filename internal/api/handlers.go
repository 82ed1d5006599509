package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/riskwatch/riskwatch/internal/common/errors"
	"github.com/riskwatch/riskwatch/internal/engine"
)

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 500
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": s.cfg.ServiceName,
	})
}

// handleProcessLogin runs the full risk pipeline for one login attempt
func (s *Server) handleProcessLogin(c *gin.Context) {
	var in engine.LoginInput
	if err := c.ShouldBindJSON(&in); err != nil {
		errors.HandleError(c, errors.BadRequest(err.Error()))
		return
	}
	if in.IP == "" {
		in.IP = c.ClientIP()
	}

	result, err := s.pipeline.ProcessLogin(c.Request.Context(), in)
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleAnonymousFailure records a failed attempt with no known user
func (s *Server) handleAnonymousFailure(c *gin.Context) {
	var req struct {
		IP        string    `json:"ip"`
		Timestamp time.Time `json:"timestamp"`
		Reason    string    `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.HandleError(c, errors.BadRequest(err.Error()))
		return
	}
	if req.IP == "" {
		req.IP = c.ClientIP()
	}

	thresholdReached, err := s.pipeline.ProcessAnonymousFailure(c.Request.Context(), req.IP, req.Timestamp, req.Reason)
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threshold_reached": thresholdReached})
}

func (s *Server) handleListDevices(c *gin.Context) {
	devices, err := s.registry.List(c.Request.Context(), c.Param("userId"))
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"devices": devices, "count": len(devices)})
}

func (s *Server) handleTrustDevice(c *gin.Context) {
	rec, err := s.registry.Trust(c.Request.Context(), c.Param("userId"), c.Param("deviceId"))
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleRevokeDevice(c *gin.Context) {
	rec, err := s.registry.Revoke(c.Request.Context(), c.Param("userId"), c.Param("deviceId"))
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleVerifyDevice(c *gin.Context) {
	var req struct {
		Fingerprint string `json:"fingerprint" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.HandleError(c, errors.BadRequest(err.Error()))
		return
	}

	ok, err := s.registry.Verify(c.Request.Context(), c.Param("deviceId"), req.Fingerprint)
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": ok})
}

func (s *Server) handleGetAssessment(c *gin.Context) {
	a, err := s.risk.Current(c.Request.Context(), c.Param("userId"))
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) handleRecompute(c *gin.Context) {
	a, err := s.risk.Recompute(c.Request.Context(), c.Param("userId"))
	if err != nil {
		errors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *Server) handleListEvents(c *gin.Context) {
	since, limit, err := windowParams(c)
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	events, err := s.events.QueryEventsByUser(c.Request.Context(), c.Param("userId"), since, limit)
	if err != nil {
		errors.HandleError(c, errors.DatabaseError("query events", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

func (s *Server) handleListAlerts(c *gin.Context) {
	since, limit, err := windowParams(c)
	if err != nil {
		errors.HandleError(c, err)
		return
	}

	alerts, err := s.events.QueryAlertsByUser(c.Request.Context(), c.Param("userId"), since, limit)
	if err != nil {
		errors.HandleError(c, errors.DatabaseError("query alerts", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

// handleResolveEvent records remediation actions from an external workflow
func (s *Server) handleResolveEvent(c *gin.Context) {
	var req struct {
		Actions []string `json:"actions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		errors.HandleError(c, errors.BadRequest(err.Error()))
		return
	}

	if err := s.events.ResolveEvent(c.Request.Context(), c.Param("eventId"), req.Actions); err != nil {
		errors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resolved": true})
}

func (s *Server) handleMarkAlertRead(c *gin.Context) {
	if err := s.events.MarkAlertRead(c.Request.Context(), c.Param("alertId")); err != nil {
		errors.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"read": true})
}

func windowParams(c *gin.Context) (time.Time, int, error) {
	since := time.Time{}
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, 0, errors.BadRequest("since must be RFC 3339")
		}
		since = parsed
	}

	limit := defaultQueryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return time.Time{}, 0, errors.BadRequest("limit must be a positive integer")
		}
		limit = parsed
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	return since, limit, nil
}
