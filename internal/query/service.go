package query

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/momentum-health/vitalsync/internal/syncer"
)

const (
	defaultWindow = 15 * time.Minute
	maxWindow     = 7 * 24 * time.Hour
)

// Service exposes the sync facade over HTTP for the app's other
// backends and for operator tooling.
type Service struct {
	facade *syncer.Service
	userID string
}

// NewService creates the query service. The deployment serves a single
// user session; userID names it.
func NewService(facade *syncer.Service, userID string) *Service {
	if facade == nil {
		panic("query: sync facade must not be nil")
	}
	if userID == "" {
		panic("query: user id must not be empty")
	}
	return &Service{facade: facade, userID: userID}
}

// RegisterRoutes registers the vitals API routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/vitals/current", s.CurrentHandler)
	r.GET("/v1/vitals/recent", s.RecentHandler)
	r.GET("/v1/vitals/stats", s.StatsHandler)
	r.GET("/v1/vitals/status", s.StatusHandler)

	r.POST("/v1/vitals/subscription", s.StartSubscriptionHandler)
	r.DELETE("/v1/vitals/subscription", s.StopSubscriptionHandler)
	r.POST("/v1/vitals/poll", s.PollHandler)
}
