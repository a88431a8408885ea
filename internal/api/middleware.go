package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/starsduel/backend/internal/telegram"
)

const initDataHeader = "X-Telegram-Init-Data"

type ctxKey int

const userCtxKey ctxKey = iota

// requireTelegramAuth verifies the init data header on every request and
// injects the verified Telegram user into the request context.
func (s *Server) requireTelegramAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(initDataHeader)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "missing init data")
			return
		}

		user, err := telegram.Verify(raw, s.botToken)
		if err != nil {
			slog.Debug("rejected init data", "error", err)
			writeError(w, http.StatusUnauthorized, "invalid init data")

			return
		}

		ctx := context.WithValue(r.Context(), userCtxKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userFrom returns the verified Telegram user placed by requireTelegramAuth.
// It panics on routes that skipped the middleware, which is a programming
// error rather than a request error.
func userFrom(ctx context.Context) *telegram.WebAppUser {
	user, ok := ctx.Value(userCtxKey).(*telegram.WebAppUser)
	if !ok {
		panic("api: handler reached without auth middleware")
	}

	return user
}
