package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quillapp/quill-server-go/internal/audit"
	apperrors "github.com/quillapp/quill-server-go/internal/errors"
	"github.com/quillapp/quill-server-go/internal/middleware"
	"github.com/quillapp/quill-server-go/internal/service"
)

// APIKeyHandler manages key lifecycle for the authenticated user. All
// routes require a bearer credential; ownership checks live in the service.
type APIKeyHandler struct {
	keys *service.APIKeyService
}

func NewAPIKeyHandler(keys *service.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{keys: keys}
}

func (h *APIKeyHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Generate)
	r.Get("/", h.List)
	r.Delete("/", h.Revoke)
	r.Delete("/{id}", h.Revoke)

	return r
}

type generateKeyRequest struct {
	Name string `json:"name"`
}

// POST /v1/keys
func (h *APIKeyHandler) Generate(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req generateKeyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, apperrors.ValidationError("invalid request body"))
		return
	}

	key, err := h.keys.Generate(r.Context(), user.ID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventKeyGenerate,
		UserID:  user.ID,
		Details: map[string]interface{}{"keyId": key.ID},
	})

	// The full secret appears in this response and nowhere else.
	writeSuccess(w, http.StatusCreated, map[string]any{
		"apiKey": key,
	})
}

// GET /v1/keys
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	views, err := h.keys.List(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"apiKeys": views,
	})
}

// DELETE /v1/keys/{id} (also accepts ?id= for older clients)
func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	keyID := chi.URLParam(r, "id")
	if keyID == "" {
		keyID = r.URL.Query().Get("id")
	}
	if keyID == "" {
		writeError(w, apperrors.MissingRequired("id"))
		return
	}

	if err := h.keys.Revoke(r.Context(), user.ID, keyID); err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventKeyRevoke,
		UserID:  user.ID,
		Details: map[string]interface{}{"keyId": keyID},
	})

	writeSuccess(w, http.StatusOK, nil)
}
