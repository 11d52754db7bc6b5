package auth

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. If you use a plain string like
// context.WithValue(ctx, "userID", id), ANY package that knows the string "userID"
// can read or shadow your value. Using a package-private type prevents collisions.
type contextKey string

const userIDKey contextKey = "userID"

// CookieName is the cookie the GitHub OAuth callback stores the token in.
const CookieName = "token"

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It validates the token from the request (see TokenFromRequest) and stores
// the user ID in the request context. If the token is missing or invalid, it
// returns 401 Unauthorized and stops the request chain.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"authentication credentials were not provided or are invalid"}` + "\n"))
				return
			}

			ctx := WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth extracts the user identity if a valid token is present, but
// does NOT block the request if it's missing or invalid.
//
// Public reads use it: anonymous callers see recipes with every per-viewer
// flag false, logged-in callers see their own is_favorited etc.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, err := extractUserID(r, tokens); err == nil {
				r = r.WithContext(WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUserID returns a copy of ctx carrying userID. Tests use it to
// simulate an authenticated request without minting a token.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the authenticated user's ID from the request context.
//
// Returns (0, false) if the request is anonymous.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id > 0
}

// TokenFromRequest returns the raw token sent with r, or "" if there is none.
//
// Accepted forms, in order of precedence:
//
//	Authorization: Token <jwt>
//	Authorization: Bearer <jwt>
//	Cookie: token=<jwt>
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && (strings.EqualFold(scheme, "Token") || strings.EqualFold(scheme, "Bearer")) {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// extractUserID is shared by RequireAuth and OptionalAuth.
func extractUserID(r *http.Request, tokens *TokenService) (int64, error) {
	return tokens.Validate(TokenFromRequest(r))
}
