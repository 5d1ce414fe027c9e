package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BorisDmv/portfolio-api/internal/auth"
)

type LoginRequest struct {
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

type AdminHandler struct {
	gate   *auth.Gate
	logger *slog.Logger
}

func NewAdminHandler(gate *auth.Gate, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{gate: gate, logger: logger.With("component", "admin")}
}

// Login exchanges the admin password for a session token usable as a
// bearer credential on the admin endpoints.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Password == "" {
		respondError(w, http.StatusBadRequest, "password required")
		return
	}

	token, expires, err := h.gate.Login(req.Password)
	if errors.Is(err, auth.ErrInvalidPassword) {
		h.logger.Warn("rejected admin login")
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err != nil {
		h.logger.Error("token signing failed", "error", err)
		respondError(w, http.StatusInternalServerError, "token error")
		return
	}
	respondJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: expires.UTC().Format(time.RFC3339)})
}
