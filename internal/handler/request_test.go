package handler

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/videohub/internal/apperror"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name         string
		remoteAddr   string
		forwardedFor string
		want         string
	}{
		{"remote ipv4", "203.0.113.7:52311", "", "203.0.113.7"},
		{"remote ipv6", "[2001:db8::1]:443", "", "2001:db8::1"},
		{"remote without port", "203.0.113.7", "", "203.0.113.7"},
		{"single forwarded", "10.0.0.1:80", "198.51.100.4", "198.51.100.4"},
		{"forwarded chain", "10.0.0.1:80", " 198.51.100.4 , 10.0.0.2", "198.51.100.4"},
		{"blank first hop", "10.0.0.1:80", " , 10.0.0.2", "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClientIP(tt.remoteAddr, tt.forwardedFor))
		})
	}
}

func TestProperty_ClientIPPrefersFirstHop(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("first forwarded hop wins", prop.ForAll(
		func(first, rest string) bool {
			return ClientIP("10.0.0.1:80", first+", "+rest) == first
		},
		gen.Identifier(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestFormSeconds(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    int
		wantErr bool
	}{
		{"blank", "", 0, false},
		{"spaces", "  ", 0, false},
		{"number", " 90 ", 90, false},
		{"negative passes through", "-5", -5, false},
		{"words", "soon", 0, true},
		{"decimal", "1.5", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/stories",
				strings.NewReader(url.Values{"publish_after": {tt.value}}.Encode()))
			r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			got, err := formSeconds(r, "publish_after")
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, apperror.FieldErrors(err), "publish_after")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormBoolAndPage(t *testing.T) {
	for value, want := range map[string]bool{"on": true, "TRUE": true, "1": true, "yes": true, "off": false, "": false} {
		r := httptest.NewRequest("GET", "/?is_active="+url.QueryEscape(value), nil)
		assert.Equal(t, want, formBool(r, "is_active"), "value %q", value)
	}

	for query, want := range map[string]int{"": 1, "page=3": 3, "page=0": 1, "page=-2": 1, "page=x": 1} {
		r := httptest.NewRequest("GET", "/videos?"+query, nil)
		assert.Equal(t, want, pageParam(r), "query %q", query)
	}
}
