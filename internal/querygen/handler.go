package querygen

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ivanhe123/jstor-gen/internal/platform"
	"github.com/ivanhe123/jstor-gen/pkg/logging"
)

func isUnknownPlatform(err error) bool {
	return errors.Is(err, platform.ErrUnknownPlatform)
}

// Handler wires HTTP requests to the query generation service.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a query generation handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type createSessionRequest struct {
	PlatformID     string `json:"platform_id"`
	VariationCount int    `json:"variation_count"`
}

type submitRequest struct {
	Message string `json:"message"`
}

type queryView struct {
	Text      string `json:"text"`
	SearchURL string `json:"search_url"`
}

type extractionView struct {
	Explanation string      `json:"explanation"`
	Queries     []queryView `json:"queries"`
}

type sessionView struct {
	SessionID      string         `json:"session_id"`
	PlatformID     string         `json:"platform_id"`
	VariationCount int            `json:"variation_count"`
	Status         Status         `json:"status"`
	LastError      string         `json:"last_error,omitempty"`
	Turns          []Turn         `json:"turns"`
	Result         extractionView `json:"result"`
}

type submitResponse struct {
	SessionID string         `json:"session_id"`
	Assistant Turn           `json:"assistant"`
	Result    extractionView `json:"result"`
}

type platformView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListPlatforms handles GET /platforms.
func (h *Handler) ListPlatforms(w http.ResponseWriter, r *http.Request) {
	profiles := h.service.Registry().List()
	out := make([]platformView, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, platformView{ID: p.ID, Name: p.Name})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// CreateSession handles POST /sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.service.CreateSession(r.Context(), SessionParameters{
		PlatformID:     req.PlatformID,
		VariationCount: req.VariationCount,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, h.sessionView(sess))
}

// GetSession handles GET /sessions/{sessionID}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.sessionView(sess))
}

// Submit handles POST /sessions/{sessionID}/messages.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	turn, result, err := h.service.Submit(r.Context(), sessionID, req.Message)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	sess, err := h.service.GetSession(r.Context(), sessionID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, submitResponse{
		SessionID: sessionID,
		Assistant: turn,
		Result:    h.extractionView(sess.Params().PlatformID, result),
	})
}

// Reset handles POST /sessions/{sessionID}/reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reset(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChangePlatform handles PUT /sessions/{sessionID}/platform.
func (h *Handler) ChangePlatform(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlatformID string `json:"platform_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.service.ChangePlatform(r.Context(), chi.URLParam(r, "sessionID"), req.PlatformID); err != nil {
		h.handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChangeVariations handles PUT /sessions/{sessionID}/variations.
func (h *Handler) ChangeVariations(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VariationCount int `json:"variation_count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.service.ChangeVariationCount(r.Context(), chi.URLParam(r, "sessionID"), req.VariationCount); err != nil {
		h.handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSession handles DELETE /sessions/{sessionID}.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) sessionView(sess *Session) sessionView {
	params := sess.Params()
	status, lastErr := sess.Status()
	view := sessionView{
		SessionID:      sess.ID,
		PlatformID:     params.PlatformID,
		VariationCount: params.VariationCount,
		Status:         status,
		Turns:          sess.Turns(),
		Result:         h.extractionView(params.PlatformID, sess.Result()),
	}
	if lastErr != nil {
		view.LastError = lastErr.Error()
	}
	return view
}

func (h *Handler) extractionView(platformID string, result ExtractionResult) extractionView {
	view := extractionView{
		Explanation: result.Explanation,
		Queries:     make([]queryView, 0, len(result.Queries)),
	}
	profile, err := h.service.Registry().Lookup(platformID)
	for _, q := range result.Queries {
		qv := queryView{Text: q}
		if err == nil {
			qv.SearchURL = profile.SearchURL(q)
		}
		view.Queries = append(view.Queries, qv)
	}
	return view
}

func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	var genErr *GenerationError
	switch {
	case errors.Is(err, ErrSessionNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrSessionBusy):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrEmptyInput),
		errors.Is(err, ErrInvalidVariationCount),
		isUnknownPlatform(err):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &genErr):
		status := http.StatusBadGateway
		if genErr.Kind == FailureUnavailable {
			status = http.StatusServiceUnavailable
		}
		h.writeError(w, status, genErr.Error())
	default:
		h.logger.Error("unhandled service error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
