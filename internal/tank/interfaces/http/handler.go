package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"watervend/internal/audit"
	tankapp "watervend/internal/tank/application"
	tank "watervend/internal/tank/domain"
)

// Handler serves the tank settings endpoints.
type Handler struct {
	service     *tankapp.Service
	auditLogger audit.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *tankapp.Service, auditLogger audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("tank handler: nil service")
	}
	return &Handler{service: service, auditLogger: auditLogger}, nil
}

// ServeHTTP handles /tank and /tank/request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/request") {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleRequest(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		respondJSON(w, http.StatusOK, h.service.Snapshot())
	case http.MethodPost:
		h.handleConfigure(w, r)
	case http.MethodPut:
		h.handleUpdate(w, r)
	case http.MethodDelete:
		h.handleReset(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type configureRequest struct {
	Capacity *float64 `json:"tank_capacity"`
	Quality  *float64 `json:"tds"`
}

func (h *Handler) handleConfigure(w http.ResponseWriter, r *http.Request) {
	var req configureRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Capacity == nil || req.Quality == nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "tank_capacity and tds are required")
		return
	}

	snap, err := h.service.Configure(r.Context(), *req.Capacity, *req.Quality)
	if err != nil {
		respondTankError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, snap)
	h.logAudit(r, "tank.configure", snap)
}

type updateRequest struct {
	Capacity  *float64 `json:"tank_capacity"`
	Quality   *float64 `json:"tds"`
	Remaining *float64 `json:"remaining"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Capacity == nil && req.Quality == nil && req.Remaining == nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "provide at least one of: tank_capacity, tds, remaining")
		return
	}

	snap, err := h.service.Update(r.Context(), req.Capacity, req.Quality, req.Remaining)
	if err != nil {
		respondTankError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
	h.logAudit(r, "tank.update", snap)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	snap := h.service.Reset(r.Context())
	respondJSON(w, http.StatusOK, snap)
	h.logAudit(r, "tank.reset", snap)
}

type litersRequest struct {
	Liters *float64 `json:"liters"`
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) {
	var req litersRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Liters == nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "liters is required")
		return
	}

	remaining, err := h.service.CheckRequest(*req.Liters)
	if err != nil {
		respondTankError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"liters":    *req.Liters,
		"remaining": remaining,
	})
}

func (h *Handler) logAudit(r *http.Request, action string, snap tank.Snapshot) {
	if h.auditLogger == nil {
		return
	}
	meta, _ := json.Marshal(snap)
	_ = h.auditLogger.Log(r.Context(), audit.Entry{
		Action:       action,
		ResourceType: "tank",
		ResourceID:   "tank-1",
		Metadata:     meta,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "read body error")
		return false
	}
	defer r.Body.Close()
	if err := json.Unmarshal(body, out); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid json")
		return false
	}
	return true
}

func respondTankError(w http.ResponseWriter, err error) {
	var insufficient *tank.InsufficientError
	switch {
	case errors.As(err, &insufficient):
		respondError(w, http.StatusBadRequest, "INSUFFICIENT_WATER", insufficient.Error())
	case errors.Is(err, tank.ErrInvalidConfig), errors.Is(err, tank.ErrInvalidLiters):
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}
