package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quillapp/quill-server-go/internal/audit"
	apperrors "github.com/quillapp/quill-server-go/internal/errors"
	"github.com/quillapp/quill-server-go/internal/service"
)

// AuthHandler issues the browser-session bearer consumed by the pairing
// page. Account management lives in the main web app, not here.
type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", h.Login)
	return r
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil || req.Email == "" || req.Password == "" {
		writeError(w, apperrors.ValidationError("email and password are required"))
		return
	}

	result, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		audit.LogFromRequest(r, audit.Event{
			Type:    audit.EventLoginFailure,
			Details: map[string]interface{}{"email": req.Email},
		})
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventLoginSuccess,
		UserID: result.User.ID,
	})

	writeSuccess(w, http.StatusOK, map[string]any{
		"token": result.Token,
		"user":  result.User,
	})
}
