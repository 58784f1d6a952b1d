package handler

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/sakif/videohub/internal/apperror"
	"github.com/sakif/videohub/internal/auth"
	"github.com/sakif/videohub/internal/model"
)

// ClientIP returns the first X-Forwarded-For entry when present and the
// host part of remoteAddr otherwise.
func ClientIP(remoteAddr, forwardedFor string) string {
	if first, _, _ := strings.Cut(forwardedFor, ","); strings.TrimSpace(first) != "" {
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// requestContext is built once per request and handed to the services,
// which never look at *http.Request.
func requestContext(r *http.Request) model.RequestContext {
	sess, _ := auth.SessionFromContext(r.Context())
	return model.RequestContext{
		UserID:    sess.UserID,
		IsAdmin:   sess.Admin,
		IP:        ClientIP(r.RemoteAddr, r.Header.Get("X-Forwarded-For")),
		UserAgent: r.UserAgent(),
	}
}

// pageParam defaults to 1 for missing or malformed values.
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// formBool accepts the values browsers and scripts send for a checkbox.
func formBool(r *http.Request, name string) bool {
	switch strings.ToLower(strings.TrimSpace(r.FormValue(name))) {
	case "1", "on", "true", "yes":
		return true
	}
	return false
}

// formSeconds parses a delay field. Blank means zero.
func formSeconds(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, "Enter a whole number.")
	}
	return n, nil
}
