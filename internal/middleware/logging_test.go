package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func TestLogger(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantRoute string
		wantCode  int
		wantLevel string
	}{
		{"matched route", "/videos/abc", "/videos/{id}", http.StatusTeapot, "level=INFO"},
		{"server error", "/boom", "/boom", http.StatusInternalServerError, "level=ERROR"},
		{"unmatched", "/nowhere", unmatchedRoute, http.StatusNotFound, "level=INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))

			r := chi.NewRouter()
			r.Use(Logger(logger))
			r.Get("/videos/{id}", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTeapot)
				_, _ = w.Write([]byte("short and stout"))
			})
			r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			})

			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.wantCode, rr.Code)
			out := buf.String()
			assert.Contains(t, out, "route="+tt.wantRoute)
			assert.Contains(t, out, tt.wantLevel)
			assert.Contains(t, out, "path="+tt.path)
		})
	}
}
