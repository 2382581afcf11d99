package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/supwarden/internal/common"
	"github.com/iudanet/supwarden/internal/server/handlers"
	"github.com/iudanet/supwarden/internal/server/jwt"
)

// AuthMiddleware создает middleware для проверки JWT токена.
// Claims кладутся в контекст, handler'ы читают их через handlers.GetUserID.
func AuthMiddleware(logger *slog.Logger, tokens *jwt.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// Извлекаем токен из заголовка Authorization
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.WarnContext(ctx, "Missing Authorization header")
				handlers.WriteError(ctx, w, logger, fmt.Errorf("%w: missing token", common.ErrUnauthenticated))
				return
			}

			// Ожидаем формат: "Bearer <token>"
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				logger.WarnContext(ctx, "Invalid Authorization header format")
				handlers.WriteError(ctx, w, logger, fmt.Errorf("%w: invalid token format", common.ErrUnauthenticated))
				return
			}

			claims, err := tokens.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				logger.WarnContext(ctx, "Invalid access token", slog.Any("error", err))
				handlers.WriteError(ctx, w, logger, err)
				return
			}

			logger.DebugContext(ctx, "User authenticated", slog.String("user_id", claims.UserID))

			next.ServeHTTP(w, r.WithContext(handlers.WithClaims(ctx, claims)))
		})
	}
}
