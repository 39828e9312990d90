package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/quillapp/quill-server-go/internal/httputil"
	"github.com/quillapp/quill-server-go/internal/model"
	"github.com/quillapp/quill-server-go/internal/service"
)

const APIKeyContextKey contextKey = "apiKey"

// APIKeyHeader carries the secret on metered calls.
const APIKeyHeader = "x-api-key"

func GetAPIKey(ctx context.Context) *model.APIKey {
	if key, ok := ctx.Value(APIKeyContextKey).(*model.APIKey); ok {
		return key
	}
	return nil
}

// APIKeyAuthMiddleware authenticates metered calls. Validation and the
// usage-counter bump happen in one conditional statement inside the service,
// so a request that reaches the handler has already been counted.
type APIKeyAuthMiddleware struct {
	keys *service.APIKeyService
}

func NewAPIKeyAuthMiddleware(keys *service.APIKeyService) *APIKeyAuthMiddleware {
	return &APIKeyAuthMiddleware{keys: keys}
}

func (m *APIKeyAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret := r.Header.Get(APIKeyHeader)
		if secret == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"success": false,
				"error":   "Missing API key",
			})
			return
		}

		key, err := m.keys.Validate(r.Context(), secret)
		if err != nil {
			log.Warn().Msg("api key middleware: invalid key attempt")
			httputil.WriteError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), APIKeyContextKey, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
