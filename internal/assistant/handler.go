package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/deskmate/internal/api"
	"github.com/ashureev/deskmate/internal/dialogue"
	"github.com/ashureev/deskmate/internal/identity"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (64KB).
const defaultMaxRequestBodySize = 64 << 10

// Handler serves the assistant API.
type Handler struct {
	hub            *Hub
	limiter        *RateLimiter
	originPatterns []string
	maxBodySize    int64
	logger         *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithOriginPatterns sets the origins allowed to open the push stream.
func WithOriginPatterns(patterns []string) HandlerOption {
	return func(h *Handler) { h.originPatterns = patterns }
}

// WithMaxBodySize bounds request bodies.
func WithMaxBodySize(n int64) HandlerOption {
	return func(h *Handler) { h.maxBodySize = n }
}

// NewHandler creates the assistant handler.
func NewHandler(hub *Hub, limiter *RateLimiter, logger *slog.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		hub:         hub,
		limiter:     limiter,
		maxBodySize: defaultMaxRequestBodySize,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers the assistant routes. They rely on the identity
// middleware for the client ID.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/assistant/sessions", func(r chi.Router) {
		r.Post("/", h.HandleOpen)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", h.HandleSnapshot)
			r.Delete("/", h.HandleClose)
			r.Post("/messages", h.HandleText)
			r.Post("/actions", h.HandleAction)
			r.Post("/upload-complete", h.HandleUploadComplete)
			r.Get("/ws", h.HandleStream)
		})
	})
}

// HandleOpen handles POST /api/assistant/sessions.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	clientID := identity.ClientIDFromContext(r.Context())
	if clientID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req OpenRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	s, err := h.hub.Open(r.Context(), clientID, identity.DisplayNameFromContext(r.Context()), strings.TrimSpace(req.Flow))
	if err != nil {
		if errors.Is(err, ErrUnknownFlow) {
			api.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to open session", "client_id", clientID, "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to open session")
		return
	}

	api.JSON(w, http.StatusCreated, sessionView(s.ID, s.Snapshot(), 0))
}

// HandleSnapshot handles GET /api/assistant/sessions/{sessionID}. The
// optional since query parameter limits the returned messages.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	api.JSON(w, http.StatusOK, sessionView(s.ID, s.Snapshot(), parseSeq(r.URL.Query().Get("since"))))
}

// HandleClose handles DELETE /api/assistant/sessions/{sessionID}.
func (h *Handler) HandleClose(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.hub.Close(s.ID)
	w.WriteHeader(http.StatusNoContent)
}

// HandleText handles POST /api/assistant/sessions/{sessionID}/messages.
func (h *Handler) HandleText(w http.ResponseWriter, r *http.Request) {
	s, ok := h.limitedSession(w, r)
	if !ok {
		return
	}
	var req TextRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		api.Error(w, http.StatusBadRequest, "text is required")
		return
	}
	h.send(w, r, s, dialogue.Text{Body: req.Text})
}

// HandleAction handles POST /api/assistant/sessions/{sessionID}/actions.
func (h *Handler) HandleAction(w http.ResponseWriter, r *http.Request) {
	s, ok := h.limitedSession(w, r)
	if !ok {
		return
	}
	var req ActionRequest
	if !h.decode(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.Trigger) == "" && strings.TrimSpace(req.Value) == "" {
		api.Error(w, http.StatusBadRequest, "trigger or value is required")
		return
	}
	h.send(w, r, s, dialogue.Button{Trigger: req.Trigger, Value: req.Value, Label: req.Label})
}

// HandleUploadComplete handles POST /api/assistant/sessions/{sessionID}/upload-complete.
func (h *Handler) HandleUploadComplete(w http.ResponseWriter, r *http.Request) {
	s, ok := h.limitedSession(w, r)
	if !ok {
		return
	}
	h.send(w, r, s, dialogue.UploadComplete{})
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request, s *Session, ev dialogue.Event) {
	since := s.lastSeq()
	if err := s.Send(r.Context(), ev); err != nil {
		switch {
		case errors.Is(err, dialogue.ErrClosed):
			api.Error(w, http.StatusGone, "session closed")
		case errors.Is(err, dialogue.ErrValidation):
			api.Error(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			api.Error(w, http.StatusServiceUnavailable, "request cancelled")
		default:
			h.logger.Error("failed to deliver event", "session_id", s.ID, "error", err,
				"request_id", chiMiddleware.GetReqID(r.Context()))
			api.Error(w, http.StatusInternalServerError, "failed to deliver event")
		}
		return
	}
	api.JSON(w, http.StatusOK, sessionView(s.ID, s.Snapshot(), since))
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	clientID := identity.ClientIDFromContext(r.Context())
	if clientID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	s, ok := h.hub.Get(chi.URLParam(r, "sessionID"), clientID)
	if !ok {
		api.Error(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return s, true
}

// limitedSession rate-limits by client ID only, not by session, so opening
// new sessions does not reset the allowance.
func (h *Handler) limitedSession(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	s, ok := h.session(w, r)
	if !ok {
		return nil, false
	}
	if h.limiter != nil && !h.limiter.Allow(s.ClientID) {
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return nil, false
	}
	return s, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	api.Error(w, http.StatusBadRequest, "invalid request body")
	return false
}
