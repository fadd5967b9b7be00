package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/krackn88/hybrid-dev-beta/internal/scheduler"
	"github.com/krackn88/hybrid-dev-beta/internal/source"
	"github.com/krackn88/hybrid-dev-beta/pkg/types"
)

// maxBodyBytes is GitHub's documented webhook payload limit
const maxBodyBytes = 25 << 20

// Scheduler is the part of the update scheduler the HTTP API drives
type Scheduler interface {
	Submit(event types.ChangeEvent) bool
	TriggerManual()
	Status() scheduler.Status
}

// Handler handles webhook deliveries and the run API
type Handler struct {
	webhooks  *source.WebhookSource
	scheduler Scheduler
	logger    *zap.Logger
	now       func() time.Time
}

// NewHandler creates a new REST handler
func NewHandler(webhooks *source.WebhookSource, sched Scheduler, logger *zap.Logger) *Handler {
	return &Handler{
		webhooks:  webhooks,
		scheduler: sched,
		logger:    logger,
		now:       time.Now,
	}
}

// MessageResponse is the body of every webhook response
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse represents the health check body
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Webhook handles POST /webhook and POST /github-webhook
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		h.logger.Warn("failed to read webhook body", zap.Error(err))
		writeMessage(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(body) > maxBodyBytes {
		writeMessage(w, http.StatusBadRequest, "payload too large")
		return
	}
	if len(body) == 0 {
		writeMessage(w, http.StatusBadRequest, "empty payload")
		return
	}

	delivery, err := h.webhooks.Accept(body, r.Header)
	if err != nil {
		var rejection *source.Rejection
		if errors.As(err, &rejection) {
			h.logger.Warn("rejected webhook delivery",
				zap.String("delivery_id", r.Header.Get("X-GitHub-Delivery")),
				zap.String("reason", string(rejection.Reason)),
				zap.Error(err),
			)
			writeMessage(w, rejection.HTTPStatus(), string(rejection.Reason))
			return
		}
		h.logger.Error("failed to accept webhook delivery", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "internal error")
		return
	}

	logger := h.logger.With(
		zap.String("delivery_id", delivery.ID),
		zap.String("event", delivery.EventType),
	)

	switch {
	case delivery.Duplicate:
		logger.Info("ignoring duplicate webhook delivery")
		writeMessage(w, http.StatusOK, "duplicate delivery")
	case delivery.EventType == "ping":
		logger.Info("received ping")
		writeMessage(w, http.StatusOK, "pong")
	case delivery.Change != nil:
		if !h.scheduler.Submit(*delivery.Change) {
			logger.Info("push already processed", zap.String("sha", delivery.Change.CommitSHA))
			writeMessage(w, http.StatusOK, "already processed")
			return
		}
		logger.Info("received push to managed branch", zap.String("sha", delivery.Change.CommitSHA))
		writeMessage(w, http.StatusAccepted, "push event processing started")
	case delivery.EventType == "push":
		logger.Info("ignoring push", zap.String("ref", delivery.Ref))
		writeMessage(w, http.StatusOK, fmt.Sprintf("ignored push to %s", delivery.Ref))
	default:
		logger.Info("ignoring webhook event")
		writeMessage(w, http.StatusOK, fmt.Sprintf("received %s event", delivery.EventType))
	}
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Timestamp: h.now().UTC()})
}

// Root handles GET /
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusOK, "automator webhook server is running")
}

// TriggerRun handles POST /api/v1/runs
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	h.scheduler.TriggerManual()
	h.logger.Info("manual run requested", zap.String("remote", r.RemoteAddr))
	writeMessage(w, http.StatusAccepted, "run queued")
}

// GetStatus handles GET /api/v1/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.scheduler.Status())
}

// RegisterRoutes registers the webhook and run API routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Post("/webhook", h.Webhook)
	r.Post("/github-webhook", h.Webhook)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/runs", h.TriggerRun)
		r.Get("/status", h.GetStatus)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// NewRouter returns a router serving every route of h
func NewRouter(h *Handler) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	h.RegisterRoutes(router)
	return router
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, MessageResponse{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
