// Package auth: edit tokens for anonymous posts.
//
// HOW ANONYMOUS EDITING WORKS
//
// Visitors can comment without an account. To let them edit or delete what
// they wrote, every ownerless post gets a random token when it is created:
//
//   - the token is stored on the post row;
//   - it is returned once in the response body;
//   - it is added to the visitor's signed edit_tokens cookie.
//
// A later edit or delete is allowed only when the client presents the same
// token for the same key, either through the cookie or explicitly in the
// request. Nothing else about the client is trusted: not the IP, not the
// name it typed, and not a signed-in session (anonymous posts from members
// are deliberately unlinked from the account).
//
// The cookie is a list, oldest first. Browsers cap a cookie at about 4KB,
// so when the encoded list no longer fits, the oldest entries are dropped.
// A client that kept the token from the response body can still present
// it explicitly after its cookie entry is gone.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"slices"
)

const (
	editTokenBytes = 32
	responsePrefix = "response_"
)

// TokenReader is the read-only view of a client's edit tokens that the
// discussion service receives. The cookie behind it is owned by the
// handler layer.
type TokenReader interface {
	Token(key string) string
}

// EditToken is one entry in a client's token list.
type EditToken struct {
	Key   string `json:"k"`
	Token string `json:"t"`
}

// EditTokens holds the tokens minted for a client's anonymous posts,
// oldest first. Comment keys are the bare id, response keys carry a
// "response_" prefix so both trees can share one list.
type EditTokens []EditToken

var _ TokenReader = EditTokens(nil)

func CommentKey(id string) string  { return id }
func ResponseKey(id string) string { return responsePrefix + id }

// Token returns "" for unknown keys, including on a nil list.
func (t EditTokens) Token(key string) string {
	for _, e := range t {
		if e.Key == key {
			return e.Token
		}
	}
	return ""
}

// Merge records token under key as the newest entry, replacing any
// previous value.
func (t *EditTokens) Merge(key, token string) {
	t.Delete(key)
	*t = append(*t, EditToken{Key: key, Token: token})
}

// Delete removes key and reports whether it was present.
func (t *EditTokens) Delete(key string) bool {
	i := slices.IndexFunc(*t, func(e EditToken) bool { return e.Key == key })
	if i < 0 {
		return false
	}
	*t = slices.Delete(*t, i, i+1)
	return true
}

// WithPresented returns t plus an explicitly presented token for key. A
// token the cookie already holds for key wins; tokens never change after
// minting, so the two can only differ when the presented one is wrong.
func (t EditTokens) WithPresented(key, token string) EditTokens {
	if token == "" || t.Token(key) != "" {
		return t
	}
	out := slices.Clone(t)
	out.Merge(key, token)
	return out
}

// MintToken returns 32 random bytes, base64url-encoded without padding.
func MintToken() (string, error) {
	b := make([]byte, editTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: minting edit token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// TokenMatches reports whether the client holds the stored token for key.
// An item without a stored token never matches.
func TokenMatches(tokens TokenReader, key string, stored *string) bool {
	if stored == nil || *stored == "" || tokens == nil {
		return false
	}
	presented := tokens.Token(key)
	if presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(*stored)) == 1
}
