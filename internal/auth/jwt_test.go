package auth

import (
	"strings"
	"testing"
	"time"
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// =========================================================================
// CONSTRUCTION
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	if _, err := NewTokenService("short"); err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

// =========================================================================
// GENERATE / VALIDATE
// =========================================================================

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	tests := []struct {
		name string
		sess Session
	}{
		{"member", Session{UserID: "user-123"}},
		{"admin", Session{UserID: "admin-1", Admin: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := ts.Generate(tt.sess)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			if strings.Count(token, ".") != 2 {
				t.Errorf("token does not look like a JWT: %q", token)
			}

			got, err := ts.Validate(token)
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if got != tt.sess {
				t.Errorf("Validate() = %+v, want %+v", got, tt.sess)
			}
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	ts := newTestTokenService(t)

	expired, err := ts.GenerateWithDuration(Session{UserID: "u"}, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateWithDuration() error = %v", err)
	}

	valid, _ := ts.Generate(Session{UserID: "u"})
	tampered := valid[:len(valid)-4] + "abcd"

	other, _ := NewTokenService("a-completely-different-secret")
	foreign, _ := other.Generate(Session{UserID: "u"})

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"tampered signature", tampered},
		{"wrong secret", foreign},
		{"empty", ""},
		{"garbage", "not.a.jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ts.Validate(tt.token); err == nil {
				t.Errorf("Validate(%q) should fail", tt.name)
			}
		})
	}
}
