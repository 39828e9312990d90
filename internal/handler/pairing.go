package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/quillapp/quill-server-go/internal/audit"
	apperrors "github.com/quillapp/quill-server-go/internal/errors"
	"github.com/quillapp/quill-server-go/internal/middleware"
	"github.com/quillapp/quill-server-go/internal/service"
)

// PairingHandler exposes the device pairing flow: the CLI starts and polls
// anonymously with its opaque token; the browser attaches, requests and
// verifies the OTP, and completes, authenticated by its session bearer.
type PairingHandler struct {
	pairing    *service.PairingService
	otp        *service.OTPService
	bearerAuth func(http.Handler) http.Handler
}

func NewPairingHandler(
	pairing *service.PairingService,
	otp *service.OTPService,
	bearerAuth func(http.Handler) http.Handler,
) *PairingHandler {
	return &PairingHandler{
		pairing:    pairing,
		otp:        otp,
		bearerAuth: bearerAuth,
	}
}

func (h *PairingHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/start", h.Start)
	r.Get("/status", h.Status)

	r.Group(func(r chi.Router) {
		r.Use(h.bearerAuth)
		r.Post("/attach", h.Attach)
		r.Post("/otp/send", h.SendOTP)
		r.Post("/otp/verify", h.VerifyOTP)
		r.Post("/complete", h.Complete)
	})

	return r
}

// POST /v1/pairing/start
func (h *PairingHandler) Start(w http.ResponseWriter, r *http.Request) {
	result, err := h.pairing.StartPairing(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to start pairing")
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventPairingStart})

	writeSuccess(w, http.StatusOK, map[string]any{
		"pairingToken": result.PairingToken,
		"browserUrl":   result.BrowserURL,
		"expiresIn":    result.ExpiresIn,
	})
}

// GET /v1/pairing/status?token=
func (h *PairingHandler) Status(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, apperrors.MissingRequired("token"))
		return
	}

	result, err := h.pairing.Poll(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	payload := map[string]any{
		"status":      result.Status,
		"otpRequired": result.OTPRequired,
	}
	if result.BearerCredential != "" {
		payload["bearerCredential"] = result.BearerCredential
	}
	if result.User != nil {
		payload["user"] = result.User
	}
	writeSuccess(w, http.StatusOK, payload)
}

type attachRequest struct {
	Token string `json:"token"`
}

// POST /v1/pairing/attach
func (h *PairingHandler) Attach(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req attachRequest
	if err := decodeBody(r, &req); err != nil || req.Token == "" {
		writeError(w, apperrors.MissingRequired("token"))
		return
	}

	result, err := h.pairing.Attach(r.Context(), req.Token, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventPairingAttach,
		UserID:    user.ID,
		RequestID: result.Request.ID,
	})

	writeSuccess(w, http.StatusOK, map[string]any{
		"status":      result.Request.Status,
		"otpRequired": result.OTPRequired,
	})
}

// POST /v1/pairing/otp/send
func (h *PairingHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req attachRequest
	if err := decodeBody(r, &req); err != nil || req.Token == "" {
		writeError(w, apperrors.MissingRequired("token"))
		return
	}

	reqID, err := h.pairing.RequestIDForToken(r.Context(), req.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	issued, err := h.otp.Issue(r.Context(), reqID, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventOTPSend,
		UserID:    user.ID,
		RequestID: reqID,
	})

	writeSuccess(w, http.StatusOK, map[string]any{
		"expiresIn": issued.ExpiresIn,
	})
}

type verifyOTPRequest struct {
	Token string `json:"token"`
	Code  string `json:"code"`
}

// POST /v1/pairing/otp/verify
//
// A successful verification immediately completes the pairing and returns
// the bearer credential, matching the single round trip the browser makes.
func (h *PairingHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req verifyOTPRequest
	if err := decodeBody(r, &req); err != nil || req.Token == "" || req.Code == "" {
		writeError(w, apperrors.ValidationError("token and code are required"))
		return
	}

	reqID, err := h.pairing.RequestIDForToken(r.Context(), req.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.otp.Verify(r.Context(), reqID, user.ID, req.Code); err != nil {
		audit.LogFromRequest(r, audit.Event{
			Type:      audit.EventOTPVerifyFailure,
			UserID:    user.ID,
			RequestID: reqID,
			Details:   map[string]interface{}{"code": string(apperrors.GetCode(err))},
		})
		writeError(w, err)
		return
	}

	result, err := h.pairing.Complete(r.Context(), req.Token, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventPairingComplete,
		UserID:    user.ID,
		RequestID: reqID,
	})

	writeSuccess(w, http.StatusOK, map[string]any{
		"bearerCredential": result.BearerCredential,
		"user":             result.User,
	})
}

// POST /v1/pairing/complete
//
// Direct completion path for accounts whose effective policy does not
// require an OTP. Callers that do need one get OTP_REQUIRED back.
func (h *PairingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req attachRequest
	if err := decodeBody(r, &req); err != nil || req.Token == "" {
		writeError(w, apperrors.MissingRequired("token"))
		return
	}

	result, err := h.pairing.Complete(r.Context(), req.Token, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:   audit.EventPairingComplete,
		UserID: user.ID,
	})

	writeSuccess(w, http.StatusOK, map[string]any{
		"bearerCredential": result.BearerCredential,
		"user":             result.User,
	})
}
