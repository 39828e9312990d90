package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/quillapp/quill-server-go/internal/audit"
	apperrors "github.com/quillapp/quill-server-go/internal/errors"
	"github.com/quillapp/quill-server-go/internal/middleware"
	"github.com/quillapp/quill-server-go/internal/model"
	"github.com/quillapp/quill-server-go/internal/repository"
	"github.com/quillapp/quill-server-go/internal/service"
	"github.com/quillapp/quill-server-go/internal/upstream"
)

const completionsEndpoint = "/v1/completions"

// MeteredHandler serves the credit-metered completion endpoint. The API key
// middleware has already validated the key and bumped its usage counter by
// the time a request lands here. Charging happens only after the upstream
// call succeeds; a failed upstream call consumes no credit and writes no
// usage log row.
type MeteredHandler struct {
	ledger   *service.LedgerService
	userRepo repository.UserRepository
	upstream upstream.Client
	cost     int64
}

func NewMeteredHandler(
	ledger *service.LedgerService,
	userRepo repository.UserRepository,
	upstreamClient upstream.Client,
	cost int64,
) *MeteredHandler {
	return &MeteredHandler{
		ledger:   ledger,
		userRepo: userRepo,
		upstream: upstreamClient,
		cost:     cost,
	}
}

func (h *MeteredHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Complete)
	return r
}

type completionRequest struct {
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"maxTokens"`
}

// POST /v1/completions
func (h *MeteredHandler) Complete(w http.ResponseWriter, r *http.Request) {
	key := middleware.GetAPIKey(r.Context())

	var req completionRequest
	if err := decodeBody(r, &req); err != nil || req.Prompt == "" {
		writeError(w, apperrors.MissingRequired("prompt"))
		return
	}

	// Fail fast on an obviously empty balance before paying for an
	// upstream call. The authoritative check is the conditional charge
	// below; this read mutates nothing.
	user, err := h.userRepo.FindByID(r.Context(), key.UserID)
	if err != nil {
		writeError(w, apperrors.Database(err))
		return
	}
	if user == nil {
		writeError(w, apperrors.Unauthenticated("Invalid API key"))
		return
	}
	if user.Credits < h.cost {
		audit.LogFromRequest(r, audit.Event{Type: audit.EventCreditDenied, UserID: key.UserID})
		writeError(w, apperrors.InsufficientCredits())
		return
	}

	start := time.Now()
	result, err := h.upstream.Complete(r.Context(), upstream.CompletionRequest{
		Prompt:    req.Prompt,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		log.Error().Err(err).Str("keyId", key.ID).Msg("upstream completion failed")
		writeError(w, apperrors.External("inference", err))
		return
	}
	elapsed := time.Since(start)

	charged, err := h.ledger.ChargeIfSufficient(r.Context(), key.UserID, h.cost)
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrCodeInsufficientCredits {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventCreditDenied, UserID: key.UserID})
		}
		writeError(w, err)
		return
	}

	if _, err := h.ledger.RecordUsage(r.Context(), model.CreateUsageLogParams{
		UserID:           key.UserID,
		APIKeyID:         key.ID,
		Endpoint:         completionsEndpoint,
		StatusCode:       http.StatusOK,
		CreditsUsed:      h.cost,
		ProcessingTimeMs: elapsed.Milliseconds(),
	}); err != nil {
		// The charge stands; losing the log entry is logged but not fatal.
		log.Error().Err(err).Str("keyId", key.ID).Msg("failed to record usage")
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"text":             result.Text,
		"creditsUsed":      h.cost,
		"remainingCredits": charged.Remaining,
	})
}
