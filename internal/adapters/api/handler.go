// Package api exposes the license issuance and validation HTTP surface.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bimora/licensegate/internal/core/domain"
	"github.com/bimora/licensegate/internal/core/ports"
	"github.com/bimora/licensegate/internal/infrastructure/metrics"
)

var validate = validator.New()

// LicenseHandler handles license HTTP requests.
type LicenseHandler struct {
	svc     ports.LicenseService
	limiter ports.IssuanceLimiter
	logger  *slog.Logger
}

// NewLicenseHandler creates a new license handler. limiter may be nil, which
// disables issuance throttling.
func NewLicenseHandler(svc ports.LicenseService, limiter ports.IssuanceLimiter, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		svc:     svc,
		limiter: limiter,
		logger:  logger.With(slog.String("handler", "license")),
	}
}

// Routes returns the chi router for all license endpoints.
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.With(IssuanceRateLimit(h.limiter, h.logger)).Post("/generate-license", h.GenerateLicense)
	r.Post("/validate-license", h.ValidateLicense)
	r.Get("/health", h.HealthCheck)
	r.Get("/metrics", h.Metrics)
	return r
}

// GenerateLicenseRequest is the issuance request payload.
type GenerateLicenseRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Company string `json:"company,omitempty"`
	Purpose string `json:"purpose,omitempty"`
}

// Bind implements render.Binder.
func (g *GenerateLicenseRequest) Bind(r *http.Request) error {
	if err := validate.Struct(g); err != nil {
		return errors.New("missing required fields (name, email)")
	}
	return nil
}

// ValidateLicenseRequest is the validation request payload.
type ValidateLicenseRequest struct {
	LicenseKey string `json:"license_key" validate:"required"`
	UserEmail  string `json:"user_email" validate:"required,email"`
	MachineID  string `json:"machine_id" validate:"required"`
}

// Bind implements render.Binder.
func (v *ValidateLicenseRequest) Bind(r *http.Request) error {
	if err := validate.Struct(v); err != nil {
		return errors.New("missing required fields (license_key, user_email, machine_id)")
	}
	return nil
}

// MessageResponse is the issuance success payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// StatusResponse carries a stable machine-readable status plus a reason.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// GenerateLicense handles POST /generate-license.
func (h *LicenseHandler) GenerateLicense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	req := &GenerateLicenseRequest{}
	if err := render.Bind(r, req); err != nil {
		writeStatus(w, r, http.StatusBadRequest, "invalid", err.Error())
		return
	}

	issuance := domain.IssuanceRequest{
		Name:    req.Name,
		Email:   req.Email,
		Company: optional(req.Company),
		Purpose: optional(req.Purpose),
	}

	result, err := h.svc.Issue(ctx, issuance)
	switch {
	case errors.Is(err, domain.ErrMissingIdentity):
		writeStatus(w, r, http.StatusBadRequest, "invalid", err.Error())
		return
	case errors.Is(err, domain.ErrNotifierUnavailable):
		// The record exists; only delivery failed.
		metrics.NotifierFailures.Inc()
		metrics.IssuanceTotal.WithLabelValues("delivery_failed").Inc()
		h.logger.ErrorContext(ctx, "issuance delivery failed",
			slog.String("request_id", reqID), slog.String("error", err.Error()))
		writeStatus(w, r, http.StatusServiceUnavailable, "unavailable",
			"License key was issued but could not be emailed. Please retry to resend.")
		return
	case errors.Is(err, domain.ErrStoreUnavailable):
		metrics.IssuanceTotal.WithLabelValues("error").Inc()
		h.logger.ErrorContext(ctx, "issuance store failure",
			slog.String("request_id", reqID), slog.String("error", err.Error()))
		writeStatus(w, r, http.StatusServiceUnavailable, "unavailable", "License store is unavailable.")
		return
	case err != nil:
		metrics.IssuanceTotal.WithLabelValues("error").Inc()
		h.logger.ErrorContext(ctx, "issuance failed",
			slog.String("request_id", reqID), slog.String("error", err.Error()))
		writeStatus(w, r, http.StatusInternalServerError, "error", "An unexpected error occurred.")
		return
	}

	if result.Created {
		metrics.IssuanceTotal.WithLabelValues("created").Inc()
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, MessageResponse{Message: "License key generated and sent successfully."})
		return
	}
	metrics.IssuanceTotal.WithLabelValues("resent").Inc()
	render.Status(r, http.StatusOK)
	render.JSON(w, r, MessageResponse{Message: "This email already has a license key; it has been resent."})
}

// ValidateLicense handles POST /validate-license.
func (h *LicenseHandler) ValidateLicense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID := middleware.GetReqID(ctx)

	req := &ValidateLicenseRequest{}
	if err := render.Bind(r, req); err != nil {
		writeStatus(w, r, http.StatusBadRequest, "invalid", err.Error())
		return
	}

	outcome, err := h.svc.Validate(ctx, req.LicenseKey, req.UserEmail, req.MachineID)
	if err != nil {
		h.logger.ErrorContext(ctx, "validation failed",
			slog.String("request_id", reqID), slog.String("error", err.Error()))
		if errors.Is(err, domain.ErrStoreUnavailable) {
			writeStatus(w, r, http.StatusServiceUnavailable, "error", "License store is unavailable.")
			return
		}
		writeStatus(w, r, http.StatusInternalServerError, "error", "An unexpected error occurred.")
		return
	}

	metrics.ValidationsTotal.WithLabelValues(strings.ToLower(string(outcome))).Inc()

	switch outcome {
	case domain.OutcomeNotFound:
		writeStatus(w, r, http.StatusNotFound, "invalid", "No license found for this key and email.")
	case domain.OutcomeInactive:
		writeStatus(w, r, http.StatusForbidden, "invalid", "This license has been deactivated.")
	case domain.OutcomeExpired:
		writeStatus(w, r, http.StatusForbidden, "expired", "This license has expired.")
	case domain.OutcomeBoundElsewhere:
		writeStatus(w, r, http.StatusForbidden, "invalid", "This license is already activated on another machine.")
	case domain.OutcomeActivatedNow:
		writeStatus(w, r, http.StatusOK, "valid", "License activated on this machine.")
	case domain.OutcomeValid:
		writeStatus(w, r, http.StatusOK, "valid", "")
	default:
		h.logger.ErrorContext(ctx, "unknown validation outcome",
			slog.String("request_id", reqID), slog.String("outcome", string(outcome)))
		writeStatus(w, r, http.StatusInternalServerError, "error", "An unexpected error occurred.")
	}
}

// HealthCheck handles health check requests.
func (h *LicenseHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "UP"
	details := make(map[string]string)

	checks := h.svc.HealthCheck(r.Context())
	if h.limiter != nil {
		checks["redis"] = h.limiter.Ping(r.Context())
	}

	for name, checkErr := range checks {
		if checkErr != nil {
			status = "DEGRADED"
			details[name] = checkErr.Error()
		} else {
			details[name] = "OK"
		}
	}

	if status == "DEGRADED" {
		render.Status(r, http.StatusServiceUnavailable)
	} else {
		render.Status(r, http.StatusOK)
	}
	render.JSON(w, r, map[string]interface{}{
		"status":  status,
		"details": details,
	})
}

// Metrics handles Prometheus metrics scraping requests.
func (h *LicenseHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeStatus(w http.ResponseWriter, r *http.Request, code int, status, message string) {
	render.Status(r, code)
	render.JSON(w, r, StatusResponse{Status: status, Message: message})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
