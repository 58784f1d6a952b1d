package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionRequest(t *testing.T, ts *TokenService, sess *Session) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if sess != nil {
		token, err := ts.Generate(*sess)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	}
	return req
}

func echoSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		_, _ = w.Write([]byte("anonymous"))
		return
	}
	_, _ = w.Write([]byte(sess.UserID))
}

func TestRequireAuth(t *testing.T) {
	ts := newTestTokenService(t)
	h := RequireAuth(ts)(http.HandlerFunc(echoSession))

	t.Run("no cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, sessionRequest(t, ts, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, sessionRequest(t, ts, &Session{UserID: "u1"}))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", rec.Body.String())
	})

	t.Run("garbage cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "nope"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestOptionalAuth(t *testing.T) {
	ts := newTestTokenService(t)
	h := OptionalAuth(ts)(http.HandlerFunc(echoSession))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, sessionRequest(t, ts, nil))
	assert.Equal(t, "anonymous", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, sessionRequest(t, ts, &Session{UserID: "u2"}))
	assert.Equal(t, "u2", rec.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	ts := newTestTokenService(t)
	h := RequireAuth(ts)(RequireAdmin(http.HandlerFunc(echoSession)))

	tests := []struct {
		name string
		sess *Session
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"member", &Session{UserID: "m"}, http.StatusForbidden},
		{"admin", &Session{UserID: "a", Admin: true}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, sessionRequest(t, ts, tt.sess))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestWriteAuthError_EscapesMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	writeAuthError(rec, http.StatusForbidden, `say "no" \ twice`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body authError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, `say "no" \ twice`, body.Error)
}
