// Package api exposes the risk pipeline over HTTP.
package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/riskwatch/riskwatch/internal/assessment"
	"github.com/riskwatch/riskwatch/internal/common/config"
	"github.com/riskwatch/riskwatch/internal/common/errors"
	"github.com/riskwatch/riskwatch/internal/device"
	"github.com/riskwatch/riskwatch/internal/engine"
	"github.com/riskwatch/riskwatch/internal/eventstore"
)

// Server holds the handler dependencies.
type Server struct {
	pipeline *engine.Service
	registry *device.Registry
	risk     *assessment.Engine
	events   eventstore.Store
	cfg      *config.Config
	logger   *zap.Logger
}

// NewServer creates the HTTP server facade.
func NewServer(pipeline *engine.Service, registry *device.Registry, risk *assessment.Engine,
	events eventstore.Store, cfg *config.Config, logger *zap.Logger) *Server {
	return &Server{
		pipeline: pipeline,
		registry: registry,
		risk:     risk,
		events:   events,
		cfg:      cfg,
		logger:   logger,
	}
}

// RegisterRoutes attaches all API routes to the router.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.handleHealth)

	v1 := r.Group("/v1")
	v1.Use(errors.ErrorHandler())
	{
		v1.POST("/logins", s.handleProcessLogin)
		v1.POST("/logins/anonymous-failure", s.handleAnonymousFailure)

		v1.GET("/users/:userId/devices", s.handleListDevices)
		v1.POST("/users/:userId/devices/:deviceId/trust", s.handleTrustDevice)
		v1.POST("/users/:userId/devices/:deviceId/revoke", s.handleRevokeDevice)
		v1.POST("/devices/:deviceId/verify", s.handleVerifyDevice)

		v1.GET("/users/:userId/assessment", s.handleGetAssessment)
		v1.POST("/users/:userId/assessment/recompute", s.handleRecompute)

		v1.GET("/users/:userId/events", s.handleListEvents)
		v1.POST("/events/:eventId/resolve", s.handleResolveEvent)
		v1.GET("/users/:userId/alerts", s.handleListAlerts)
		v1.POST("/alerts/:alertId/read", s.handleMarkAlertRead)
	}
}
