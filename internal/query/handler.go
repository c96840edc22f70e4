package query

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	httperr "github.com/momentum-health/vitalsync/internal/core/errors"
	"github.com/momentum-health/vitalsync/internal/core/vitals"
)

// queryError carries the structured HTTP error shape from a helper back
// to the handler. Helpers return this instead of writing to gin.Context
// directly, keeping them decoupled from HTTP.
type queryError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *queryError) Error() string {
	return e.message
}

// CurrentHandler returns the latest merged record. 404 with a no_data
// error shape when nothing has ever been merged.
func (s *Service) CurrentHandler(c *gin.Context) {
	current, ok := s.facade.Current()
	if !ok {
		writeError(c, &queryError{
			statusCode: http.StatusNotFound,
			errorType:  httperr.HttpNoDataError,
			message:    "No vitals data available yet",
		})
		return
	}
	c.JSON(http.StatusOK, current)
}

// RecentHandler returns records within the trailing window given by the
// window query parameter (Go duration or Xd days, default 15m).
func (s *Service) RecentHandler(c *gin.Context) {
	window, qerr := parseWindow(c)
	if qerr != nil {
		writeError(c, qerr)
		return
	}

	records := s.facade.RecentRecords(window)
	c.JSON(http.StatusOK, gin.H{
		"window":  window.String(),
		"count":   len(records),
		"records": records,
	})
}

// StatsHandler returns derived statistics over the trailing window.
func (s *Service) StatsHandler(c *gin.Context) {
	window, qerr := parseWindow(c)
	if qerr != nil {
		writeError(c, qerr)
		return
	}

	body := gin.H{
		"window":           window.String(),
		"stress_indicator": s.facade.StressIndicator(window),
	}
	if mean, ok := s.facade.MeanHeartRate(window); ok {
		body["mean_heart_rate"] = mean
	}
	c.JSON(http.StatusOK, body)
}

// StatusHandler returns the connection status of the sync session.
func (s *Service) StatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": s.facade.Status().String()})
}

// StartSubscriptionHandler starts the sync session for the configured
// user, honoring the stored prefer-polling preference.
func (s *Service) StartSubscriptionHandler(c *gin.Context) {
	if err := s.facade.StartSubscription(c.Request.Context(), s.userID); err != nil {
		slog.Error("Failed to start sync session", "user_id", s.userID, "error", err)
		writeError(c, &queryError{
			statusCode: http.StatusBadGateway,
			errorType:  httperr.HttpSyncStartError,
			message:    "Failed to start sync session",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": s.facade.Status().String()})
}

// StopSubscriptionHandler stops the sync session. Always succeeds.
func (s *Service) StopSubscriptionHandler(c *gin.Context) {
	s.facade.StopSubscription()
	c.JSON(http.StatusOK, gin.H{"status": s.facade.Status().String()})
}

// PollHandler triggers one best-effort composite fetch outside the
// polling schedule. Always 202: failures are swallowed downstream.
func (s *Service) PollHandler(c *gin.Context) {
	s.facade.PollOnce(c.Request.Context(), s.userID)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// parseWindow reads and validates the window query parameter.
func parseWindow(c *gin.Context) (time.Duration, *queryError) {
	raw := c.Query("window")
	if raw == "" {
		return defaultWindow, nil
	}

	window, err := vitals.ParseLookback(raw)
	if err != nil {
		slog.Warn("Invalid window parameter", "window", raw, "error", err)
		return 0, &queryError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidWindowError,
			message:    "Invalid window parameter",
			details:    map[string]interface{}{"window": raw},
		}
	}
	if window <= 0 || window > maxWindow {
		return 0, &queryError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidWindowError,
			message:    "Window must be positive and at most 7 days",
			details:    map[string]interface{}{"window": raw},
		}
	}
	return window, nil
}

// writeError serializes a queryError as the JSON HTTP response.
func writeError(c *gin.Context, err *queryError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
