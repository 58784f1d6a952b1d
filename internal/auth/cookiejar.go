package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/securecookie"
)

const (
	// EditTokensCookie holds the client's EditTokens.
	EditTokensCookie = "edit_tokens"
	editTokensMaxAge = 365 * 24 * time.Hour

	// MaxCookieValue is the longest encoded value the jar writes. Browsers
	// drop cookies past roughly 4KB including the name and attributes.
	MaxCookieValue = 3800
)

// ErrCookieTooLong is returned by Set when the encoded value does not fit.
var ErrCookieTooLong = errors.New("auth: encoded cookie value too long")

// jsonSerializer plugs goccy/go-json into securecookie.
type jsonSerializer struct{}

func (jsonSerializer) Serialize(src any) ([]byte, error) {
	return json.Marshal(src)
}

func (jsonSerializer) Deserialize(src []byte, dst any) error {
	return json.Unmarshal(src, dst)
}

// TokenJar reads and writes signed cookies: the long-lived edit token map
// and short-lived values such as a pending verification.
type TokenJar struct {
	codec  *securecookie.SecureCookie
	secure bool
}

// NewTokenJar signs cookies with hashKey. A non-empty blockKey (16, 24 or
// 32 bytes) also encrypts them.
func NewTokenJar(hashKey, blockKey []byte, secure bool) (*TokenJar, error) {
	if len(hashKey) < 32 {
		return nil, errors.New("auth: cookie hash key must be at least 32 bytes")
	}
	if len(blockKey) == 0 {
		blockKey = nil
	}
	switch len(blockKey) {
	case 0, 16, 24, 32:
	default:
		return nil, fmt.Errorf("auth: cookie block key must be 16, 24 or 32 bytes, got %d", len(blockKey))
	}

	// The length limit is enforced by Set so that SetTokens can tell a
	// full cookie apart from other encoding failures.
	codec := securecookie.New(hashKey, blockKey).
		SetSerializer(jsonSerializer{}).
		MaxAge(int(editTokensMaxAge.Seconds())).
		MaxLength(0)
	return &TokenJar{codec: codec, secure: secure}, nil
}

// Tokens decodes the edit token list. A missing, tampered or undecodable
// cookie yields an empty map.
func (j *TokenJar) Tokens(r *http.Request) EditTokens {
	var tokens EditTokens
	if err := j.Get(r, EditTokensCookie, &tokens); err != nil || tokens == nil {
		return EditTokens{}
	}
	return tokens
}

// SetTokens writes the whole list back with a one-year expiry. When the
// encoded list is too long, the oldest entries are dropped until it fits.
// It returns the number of entries dropped.
func (j *TokenJar) SetTokens(w http.ResponseWriter, tokens EditTokens) (int, error) {
	for dropped := 0; dropped <= len(tokens); dropped++ {
		err := j.Set(w, EditTokensCookie, tokens[dropped:], editTokensMaxAge)
		if !errors.Is(err, ErrCookieTooLong) {
			return dropped, err
		}
	}
	return len(tokens), ErrCookieTooLong
}

// Set signs value into cookie name. The payload embeds its own timestamp
// and Get refuses anything older than maxAge.
func (j *TokenJar) Set(w http.ResponseWriter, name string, value any, maxAge time.Duration) error {
	encoded, err := j.codec.Encode(name, signedValue{Value: value, Expires: time.Now().Add(maxAge).Unix()})
	if err != nil {
		return fmt.Errorf("auth: encoding cookie %s: %w", name, err)
	}
	if len(encoded) > MaxCookieValue {
		return fmt.Errorf("%w: %s is %d bytes", ErrCookieTooLong, name, len(encoded))
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Get decodes cookie name into dst. Expired and tampered cookies fail.
func (j *TokenJar) Get(r *http.Request, name string, dst any) error {
	c, err := r.Cookie(name)
	if err != nil {
		return err
	}
	var raw signedRaw
	if err := j.codec.Decode(name, c.Value, &raw); err != nil {
		return fmt.Errorf("auth: decoding cookie %s: %w", name, err)
	}
	if raw.Expires != 0 && time.Now().Unix() > raw.Expires {
		return fmt.Errorf("auth: cookie %s expired", name)
	}
	return json.Unmarshal(raw.Value, dst)
}

func (j *TokenJar) Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type signedValue struct {
	Value   any   `json:"v"`
	Expires int64 `json:"e"`
}

type signedRaw struct {
	Value   json.RawMessage `json:"v"`
	Expires int64           `json:"e"`
}
