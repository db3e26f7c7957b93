package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/tphakala/flagmigrate/internal/logger"
)

// MigrationStatusResponse represents the migration status for the API.
type MigrationStatusResponse struct {
	Status          string     `json:"status"`
	RunID           string     `json:"run_id,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	TotalItems      int64      `json:"total_items"`
	ProcessedItems  int64      `json:"processed_items"`
	ProgressPercent float64    `json:"progress_percent"`
	LastKey         string     `json:"last_key,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	FailedItem      string     `json:"failed_item,omitempty"`
	CanResume       bool       `json:"can_resume"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// GetMigrationStatus handles GET /api/v2/migration/status
func (s *Server) GetMigrationStatus(ctx echo.Context) error {
	if s.status == nil {
		return s.HandleError(ctx, fmt.Errorf("migration state not configured"),
			"Migration state is not available", http.StatusServiceUnavailable)
	}

	state, err := s.status.GetState()
	if err != nil {
		return s.HandleError(ctx, err, "Failed to get migration status", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, MigrationStatusResponse{
		Status:          string(state.Status),
		RunID:           state.RunID,
		StartedAt:       state.StartedAt,
		CompletedAt:     state.CompletedAt,
		TotalItems:      state.TotalItems,
		ProcessedItems:  state.ProcessedItems,
		ProgressPercent: state.Progress(),
		LastKey:         state.LastKey,
		ErrorMessage:    state.ErrorMessage,
		FailedItem:      state.FailedItem,
		CanResume:       state.CanResume(),
	})
}

// HandleError logs err under a correlation id and writes it as JSON.
func (s *Server) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := ErrorResponse{
		Error:         err.Error(),
		Message:       message,
		Code:          code,
		CorrelationID: uuid.NewString()[:8],
	}

	s.logger.Error("API error",
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("ip", ctx.RealIP()),
		logger.Error(err))

	return ctx.JSON(code, resp)
}
