package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"studentbudget/internal/core"
	"studentbudget/internal/services"
	"studentbudget/internal/store"
)

const (
	msgUserExists     = "Username already exists!"
	msgBadCredentials = "Invalid username or password"
	msgInternal       = "Something went wrong. Please try again."
)

// errorStatus maps a service error onto the status and message shown to
// the user.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrUserExists):
		return http.StatusConflict, msgUserExists
	case errors.Is(err, core.ErrInvalidCredentials):
		return http.StatusUnauthorized, msgBadCredentials
	case errors.Is(err, services.ErrValidation):
		return http.StatusUnprocessableEntity, validationMessage(err)
	case errors.Is(err, core.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

// validationMessage drops the sentinel prefix: "amount: invalid amount".
func validationMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), services.ErrValidation.Error()+": ")
	if msg == "" {
		return "Invalid input"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the templates and that the record store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{"templates": "ok"}

	if err := store.Ping(ctx, s.store); err != nil {
		checks["store"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	limits := s.limiter.GetMetrics()
	traces := s.tracer.GetMetrics()
	checks["rate_limiter"] = map[string]any{
		"active_clients": limits.ClientCount,
		"rejected":       limits.Rejected,
	}
	checks["requests"] = map[string]any{
		"total":         traces.TotalRequests,
		"server_errors": traces.ServerErrors,
		"suspicious":    s.detector.GetMetrics().SuspiciousRequests,
	}

	NewResponse().Status(httpStatus).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}
