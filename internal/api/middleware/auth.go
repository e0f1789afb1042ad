package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/greenyield/greenyield/internal/api/models"
	"github.com/greenyield/greenyield/internal/auth"
)

type growerIDKey struct{}

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.Claims, error)
}

// Auth rejects requests without a valid grower bearer token and stores the
// grower id in the request context.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeUnauthorized(w, r, "missing or malformed bearer token")
				return
			}

			claims, err := validator.ValidateAccessToken(token)
			if err != nil {
				detail := "invalid access token"
				if errors.Is(err, auth.ErrAccessTokenExpired) {
					detail = "access token has expired"
				}
				writeUnauthorized(w, r, detail)
				return
			}

			ctx := context.WithValue(r.Context(), growerIDKey{}, claims.GrowerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token of a "Bearer <token>" header, matching the
// scheme case-insensitively.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// writeUnauthorized lives here because the response package imports middleware.
func writeUnauthorized(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="greenyield"`)
	models.NewUnauthorized(GetRequestID(r.Context()), detail).WithInstance(r.URL.Path).Write(w)
}

// GetGrowerID returns the authenticated grower id, or "" if unauthenticated.
func GetGrowerID(ctx context.Context) string {
	if id, ok := ctx.Value(growerIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithGrowerID returns a context carrying growerID, as Auth would set it.
func WithGrowerID(ctx context.Context, growerID string) context.Context {
	return context.WithValue(ctx, growerIDKey{}, growerID)
}
