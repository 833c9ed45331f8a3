package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rs/xid"
)

// InstanceCookie carries the signed instance token.
const InstanceCookie = "ngo_instance"

// contextKey is an unexported type so no other package can read or shadow
// the values this package stores in a request context.
type contextKey string

const instanceIDKey contextKey = "instanceID"

// CookieOptions controls how the instance cookie is issued.
// Secure should be true in production (HTTPS only).
type CookieOptions struct {
	Secure bool
}

// Instance is a middleware that guarantees every request belongs to an
// application instance.
//
// It reads the instance token from the InstanceCookie, validates it, and
// stores the instance ID in the request context. When the cookie is missing,
// expired or forged it mints a fresh instance ID and issues a new cookie, so
// downstream handlers can always call InstanceFromContext.
//
// A fresh instance starts anonymous: no identity is bound to an ID nobody has
// signed in under yet.
func Instance(tokens *TokenService, opts CookieOptions, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			instanceID, err := extractInstanceID(r, tokens)
			if err != nil {
				instanceID = xid.New().String()
				token, genErr := tokens.Generate(instanceID)
				if genErr != nil {
					logger.Error("minting instance token failed", slog.String("error", genErr.Error()))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     InstanceCookie,
					Value:    token,
					Path:     "/",
					MaxAge:   int(tokens.TTL().Seconds()),
					HttpOnly: true,
					Secure:   opts.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(WithInstanceID(r.Context(), instanceID)))
		})
	}
}

// WithInstanceID returns a copy of ctx carrying the instance ID.
func WithInstanceID(ctx context.Context, instanceID string) context.Context {
	return context.WithValue(ctx, instanceIDKey, instanceID)
}

// InstanceFromContext retrieves the application instance ID set by Instance.
// Returns ("", false) outside the middleware.
func InstanceFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(instanceIDKey).(string)
	return id, ok && id != ""
}

func extractInstanceID(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie(InstanceCookie)
	if err != nil {
		return "", err
	}
	return tokens.Validate(cookie.Value)
}
