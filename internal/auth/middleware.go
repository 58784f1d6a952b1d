package auth

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
)

// SessionCookie carries the session JWT.
const SessionCookie = "token"

// contextKey keeps this package's context values private.
type contextKey string

const sessionKey contextKey = "session"

// RequireAuth rejects requests without a valid session cookie with 401
// and stores the Session in the context otherwise.
//
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := extractSession(r, tokens)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "valid authentication required")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// OptionalAuth attaches the Session when a valid cookie is present and
// otherwise lets the request through as anonymous. Discussion routes use
// it: anonymous authors can post, signed-in authors are attributed.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if sess, err := extractSession(r, tokens); err == nil {
				r = r.WithContext(WithSession(r.Context(), sess))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, "valid authentication required")
			return
		}
		if !sess.Admin {
			writeAuthError(w, http.StatusForbidden, "administrator access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// SessionFromContext returns (Session{}, false) for anonymous requests.
func SessionFromContext(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(sessionKey).(Session)
	return sess, ok && sess.UserID != ""
}

// UserIDFromContext is a shorthand for handlers that only need the id.
func UserIDFromContext(ctx context.Context) (string, bool) {
	sess, ok := SessionFromContext(ctx)
	return sess.UserID, ok
}

func extractSession(r *http.Request, tokens *TokenService) (Session, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return Session{}, err
	}
	return tokens.Validate(cookie.Value)
}

type authError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(authError{Error: msg})
}
