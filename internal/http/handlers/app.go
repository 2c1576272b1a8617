package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"bluecut/internal/domain"
	"bluecut/internal/events"
	"bluecut/internal/jobs"
	"bluecut/internal/middleware"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	Jobs         *jobs.Service
	Events       *events.Bus
	Logger       zerolog.Logger
	WorkerSecret string
	// DB is optional; health reports "degraded" when its ping fails.
	DB Pinger
}

type errorResponse struct {
	OK              bool            `json:"ok"`
	Error           string          `json:"error"`
	ErrorCode       string          `json:"errorCode,omitempty"`
	CreditsRequired int             `json:"creditsRequired,omitempty"`
	Monthly         *monthlyPayload `json:"monthly,omitempty"`
}

type monthlyPayload struct {
	Included int `json:"included"`
	Used     int `json:"used"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorResponse{Error: message, ErrorCode: code})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

type errorMapping struct {
	kind    error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized"},
	{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN", "Forbidden"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later."},
	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND", "Not found"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT", "Invalid request"},
	{domain.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Payload too large"},
	{domain.ErrUnsupportedOutputType, http.StatusUnsupportedMediaType, "UNSUPPORTED_OUTPUT_TYPE", "Unsupported output type."},
	{domain.ErrNotRetryable, http.StatusConflict, "NOT_RETRYABLE", "Only failed jobs can be retried."},
	{domain.ErrInputMissing, http.StatusConflict, "INPUT_MISSING", "Input file missing."},
	{domain.ErrNotReady, http.StatusConflict, "NOT_READY", "Result not ready."},
	{domain.ErrWorkerNotConfigured, http.StatusServiceUnavailable, "WORKER_NOT_CONFIGURED", "Worker not configured."},
	{domain.ErrUpstreamUnavailable, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "Upstream unavailable"},
}

// writeError maps err onto the error taxonomy. Anything unmapped is logged
// and answered with a generic 500.
func (a *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ce *domain.CreditsError
	if errors.As(err, &ce) {
		body := errorResponse{Error: ce.Error(), ErrorCode: "NOT_ENOUGH_CREDITS", CreditsRequired: ce.Required}
		if ce.Monthly {
			body.Monthly = &monthlyPayload{Included: ce.Included, Used: ce.Used}
		}
		a.json(w, http.StatusPaymentRequired, body)
		return
	}
	for _, m := range errorMappings {
		if !errors.Is(err, m.kind) {
			continue
		}
		message := m.message
		var de *domain.Error
		if errors.As(err, &de) && de.Message != "" {
			message = de.Message
		}
		a.error(w, m.status, m.code, message)
		return
	}
	a.Logger.Error().Err(err).
		Str("request_id", middleware.RequestIDFromContext(r.Context())).
		Str("path", r.URL.Path).
		Msg("internal error")
	a.error(w, http.StatusInternalServerError, "INTERNAL", "Internal server error")
}
