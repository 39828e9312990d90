package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/quillapp/quill-server-go/internal/model"
	"github.com/quillapp/quill-server-go/internal/repository"
	"github.com/quillapp/quill-server-go/internal/service"
)

type contextKey string

const UserContextKey contextKey = "user"

func GetUser(ctx context.Context) *model.User {
	if user, ok := ctx.Value(UserContextKey).(*model.User); ok {
		return user
	}
	return nil
}

// BearerAuthMiddleware authenticates requests carrying a signed bearer
// credential (browser session or paired-CLI credential) and loads the user
// into the request context.
type BearerAuthMiddleware struct {
	tokens   *service.TokenService
	userRepo repository.UserRepository
}

func NewBearerAuthMiddleware(tokens *service.TokenService, userRepo repository.UserRepository) *BearerAuthMiddleware {
	return &BearerAuthMiddleware{tokens: tokens, userRepo: userRepo}
}

func (m *BearerAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r)
		if token == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"success": false,
				"error":   "Missing bearer credential",
			})
			return
		}

		userID, err := m.tokens.Verify(token)
		if err != nil {
			log.Warn().Msg("auth middleware: invalid bearer credential")
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"success": false,
				"error":   "Invalid or expired credential",
			})
			return
		}

		user, err := m.userRepo.FindByID(r.Context(), userID)
		if err != nil {
			log.Error().Err(err).Msg("auth middleware: database error")
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   "Authentication failed",
			})
			return
		}
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"success": false,
				"error":   "Unknown user",
			})
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearer(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}
