package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"memberhub/internal/provider"
	"memberhub/pkg/requestcontext"
)

// MetadataClaim is the namespaced claim carrying the provider's application
// metadata inside the session token.
const MetadataClaim = "https://memberhub.app/app_metadata"

type contextKeySession struct{}

// ContextKeySession is exported for tests that inject a session directly.
var ContextKeySession = contextKeySession{}

// SessionFromContext retrieves the authenticated session identity, if any.
func SessionFromContext(ctx context.Context) (provider.SessionIdentity, bool) {
	session, ok := ctx.Value(ContextKeySession).(provider.SessionIdentity)
	return session, ok
}

// WithSession injects a session identity into the context.
func WithSession(ctx context.Context, session provider.SessionIdentity) context.Context {
	return context.WithValue(ctx, ContextKeySession, session)
}

type sessionClaims struct {
	Email    string         `json:"email"`
	Name     string         `json:"name"`
	Picture  string         `json:"picture"`
	Metadata map[string]any `json:"https://memberhub.app/app_metadata"`
	jwt.RegisteredClaims
}

// RequireSession validates the bearer session token and attaches the derived
// SessionIdentity to the request context. The identity is re-derived on every
// request; nothing session-shaped is cached server-side.
func RequireSession(secret []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				unauthorized(ctx, w, logger, "missing or malformed Authorization header")
				return
			}

			claims := &sessionClaims{}
			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return secret, nil
			})
			if err != nil || !parsed.Valid {
				if logger != nil {
					logger.WarnContext(ctx, "session token rejected",
						"error", err,
						"request_id", requestcontext.RequestID(ctx),
					)
				}
				unauthorized(ctx, w, logger, "invalid or expired session token")
				return
			}

			session := provider.SessionIdentity{
				SubjectID:   claims.Subject,
				Email:       claims.Email,
				DisplayName: claims.Name,
				PictureURL:  claims.Picture,
				Metadata:    claims.Metadata,
			}
			ctx = WithSession(ctx, session)
			ctx = requestcontext.WithSubjectID(ctx, session.SubjectID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if _, err := fmt.Fprintf(w, `{"error":"unauthorized","error_description":%q}`, description); err != nil && logger != nil {
		logger.ErrorContext(ctx, "failed to write unauthorized response", "error", err)
	}
}
