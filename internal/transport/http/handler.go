// Package httptransport is the thin HTTP layer over the engine. Handlers
// parse, delegate and encode; all aggregation policy stays in the engine.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"memberhub/internal/engine"
	"memberhub/internal/platform/middleware"
	"memberhub/internal/profile"
	"memberhub/internal/provider"
)

// EngineService is the facade surface the handlers consume.
type EngineService interface {
	GetProfile(ctx context.Context, session provider.SessionIdentity, opts engine.GetProfileOptions) profile.Profile
	UpdateProfile(ctx context.Context, subjectID, contactID string, fields map[string]any) (engine.UpdateResult, error)
	CheckIdentityExists(ctx context.Context, email string) (engine.IdentityCheck, error)
	SetOnboardingCompleted(ctx context.Context, subjectID string) (engine.OnboardingResult, error)
}

// Handler handles the engine's HTTP endpoints.
type Handler struct {
	engine        EngineService
	sessionSecret []byte
	logger        *slog.Logger
}

// New creates a Handler.
func New(engine EngineService, sessionSecret []byte, logger *slog.Logger) *Handler {
	return &Handler{
		engine:        engine,
		sessionSecret: sessionSecret,
		logger:        logger,
	}
}

// Register mounts the engine routes. Everything here requires a session.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.ClientDevice)
	router.Use(middleware.RequireSession(h.sessionSecret, h.logger))

	router.Get("/profile", h.handleGetProfile)
	router.Patch("/profile", h.handleUpdateProfile)
	router.Post("/profile/onboarding-complete", h.handleOnboardingComplete)
	router.Get("/identity/check", h.handleIdentityCheck)

	r.Mount("/", router)
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := middleware.SessionFromContext(ctx)
	if !ok {
		h.authContextError(ctx, w)
		return
	}

	minimal := r.URL.Query().Get("minimal") == "true"
	p := h.engine.GetProfile(ctx, session, engine.GetProfileOptions{Minimal: minimal})
	writeJSON(w, http.StatusOK, p)
}

type updateProfileRequest struct {
	ContactID string         `json:"contactId"`
	Fields    map[string]any `json:"fields"`
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := middleware.SessionFromContext(ctx)
	if !ok {
		h.authContextError(ctx, w)
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ContactID == "" || len(req.Fields) == 0 {
		writeErrorJSON(w, http.StatusBadRequest, "contactId and fields are required")
		return
	}

	result, err := h.engine.UpdateProfile(ctx, session.SubjectID, req.ContactID, req.Fields)
	if err != nil {
		if h.logger != nil {
			h.logger.ErrorContext(ctx, "profile update failed",
				"subject_id", session.SubjectID,
				"contact_id", req.ContactID,
				"error", err,
			)
		}
		writeErrorJSON(w, http.StatusBadGateway, "profile update failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleOnboardingComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := middleware.SessionFromContext(ctx)
	if !ok {
		h.authContextError(ctx, w)
		return
	}

	result, err := h.engine.SetOnboardingCompleted(ctx, session.SubjectID)
	if err != nil {
		if h.logger != nil {
			h.logger.ErrorContext(ctx, "onboarding completion failed",
				"subject_id", session.SubjectID,
				"error", err,
			)
		}
		writeErrorJSON(w, http.StatusBadGateway, "onboarding completion failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleIdentityCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	address := r.URL.Query().Get("email")
	check, err := h.engine.CheckIdentityExists(ctx, address)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "a valid email query parameter is required")
		return
	}
	writeJSON(w, http.StatusOK, check)
}

func (h *Handler) authContextError(ctx context.Context, w http.ResponseWriter) {
	// Unreachable when RequireSession is mounted; kept as a guard.
	if h.logger != nil {
		h.logger.ErrorContext(ctx, "session missing from context despite auth middleware")
	}
	writeErrorJSON(w, http.StatusInternalServerError, "authentication context error")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeErrorJSON(w http.ResponseWriter, status int, description string) {
	writeJSON(w, status, map[string]string{"error": description})
}
