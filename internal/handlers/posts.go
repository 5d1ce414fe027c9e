package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BorisDmv/portfolio-api/internal/content"
	"github.com/BorisDmv/portfolio-api/internal/db"
	"github.com/BorisDmv/portfolio-api/internal/models"
)

// maxBodyBytes leaves room for featured images sent as data URLs.
const maxBodyBytes = 10 << 20

type PostsHandler struct {
	repo      db.Repository
	logger    *slog.Logger
	now       func() time.Time
	sanitizer *content.Sanitizer
}

type PostsResponse struct {
	Posts []models.Post `json:"posts"`
}

type PostResponse struct {
	Post models.Post `json:"post"`
}

func NewPostsHandler(repo db.Repository, logger *slog.Logger) *PostsHandler {
	return &PostsHandler{
		repo:   repo,
		logger: logger.With("component", "posts"),
		now:    time.Now,
	}
}

// WithSanitizer scrubs post bodies before they are stored. Without one the
// payload is stored exactly as sent.
func (h *PostsHandler) WithSanitizer(s *content.Sanitizer) *PostsHandler {
	h.sanitizer = s
	return h
}

// WithClock replaces the time source used for createdAt and updatedAt.
func (h *PostsHandler) WithClock(now func() time.Time) *PostsHandler {
	h.now = now
	return h
}

func (h *PostsHandler) List(w http.ResponseWriter, r *http.Request) {
	posts, err := h.repo.List(r.Context())
	if err != nil {
		h.storeError(w, "list", err)
		return
	}
	respondJSON(w, http.StatusOK, PostsResponse{Posts: posts})
}

func (h *PostsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "Post ID required")
		return
	}
	post, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.storeError(w, "get", err)
		return
	}
	respondJSON(w, http.StatusOK, PostResponse{Post: *post})
}

func (h *PostsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePostRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if h.sanitizer != nil {
		h.sanitizer.SanitizeCreate(&req)
	}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.repo.Create(r.Context(), req.Post(h.now()))
	if err != nil {
		h.storeError(w, "create", err)
		return
	}
	h.logger.Info("post created", "id", id)
	respondJSON(w, http.StatusCreated, successResponse{Success: true, ID: id})
}

func (h *PostsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.UpdatePostRequest
	if r.ContentLength != 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}
	id := requestID(req.ID, r)
	if id == "" {
		respondError(w, http.StatusBadRequest, "Post ID required")
		return
	}
	update := req.PostUpdate
	if h.sanitizer != nil {
		h.sanitizer.SanitizeUpdate(&update)
	}
	if err := update.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	update.UpdatedAt = models.Timestamp(h.now())

	err := h.repo.Update(r.Context(), id, update)
	if errors.Is(err, db.ErrNotFound) {
		h.logger.Info("update matched no post", "id", id)
		err = nil
	}
	if err != nil {
		h.storeError(w, "update", err)
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *PostsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req models.DeletePostRequest
	if r.ContentLength != 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}
	id := requestID(req.ID, r)
	if id == "" {
		respondError(w, http.StatusBadRequest, "Post ID required")
		return
	}

	err := h.repo.Delete(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		h.logger.Info("delete matched no post", "id", id)
		err = nil
	}
	if err != nil {
		h.storeError(w, "delete", err)
		return
	}
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}

// requestID prefers the id from the body and falls back to ?id=.
func requestID(bodyID string, r *http.Request) string {
	if id := strings.TrimSpace(bodyID); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("id"))
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return false
	}
	return true
}

// storeError is the single place repository errors become responses. Driver
// messages are passed through to the admin client.
func (h *PostsHandler) storeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, db.ErrMissingURI):
		h.logger.Error("store not configured", "op", op, "error", err)
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "Configuration error", Message: err.Error()})
	case errors.Is(err, db.ErrInvalidID):
		respondError(w, http.StatusBadRequest, "Invalid post ID")
	case errors.Is(err, db.ErrNotFound):
		respondError(w, http.StatusNotFound, "Post not found")
	default:
		h.logger.Error("store failure", "op", op, "error", err)
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "Database error", Message: err.Error()})
	}
}
