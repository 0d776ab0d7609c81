package scrape

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"   ", ""},
		{"acme.com", "https://acme.com"},
		{"www.acme.com/about", "https://www.acme.com/about"},
		{"http://acme.com", "http://acme.com"},
		{"HTTPS://Acme.com", "HTTPS://Acme.com"},
		{"  https://acme.com  ", "https://acme.com"},
		{"httpie.io", "https://httpie.io"},
		{"httpbin.org/get", "https://httpbin.org/get"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeURL(tt.in), tt.in)
	}
}

func TestGuard_Check(t *testing.T) {
	g := NewGuard("internal.corp", "10.0.0.5.")

	blocked := []string{
		"http://169.254.169.254/latest/meta-data/",
		"http://127.0.0.1:8080/admin",
		"localhost:3000",
		"http://LOCALHOST/",
		"http://[::1]/",
		"http://0.0.0.0",
		"http://metadata.google.internal/computeMetadata/v1/",
		"https://internal.corp/x",
		"http://10.0.0.5",
		"http://api.localhost/",
	}
	for _, raw := range blocked {
		_, err := g.Check(raw)
		require.Error(t, err, raw)
		assert.True(t, eris.Is(err, ErrBlockedHost), raw)
	}

	allowed := map[string]string{
		"acme.com":                 "https://acme.com",
		"https://acmeplumbing.com": "https://acmeplumbing.com",
		"http://localhostel.com":   "http://localhostel.com",
		"httpie.io":                "https://httpie.io",
		"httpbin.org/get":          "https://httpbin.org/get",
	}
	for raw, want := range allowed {
		got, err := g.Check(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}
}

func TestGuard_CheckInvalid(t *testing.T) {
	g := NewGuard()

	_, err := g.Check("")
	require.Error(t, err)
	assert.False(t, eris.Is(err, ErrBlockedHost))

	_, err = g.Check("https://")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no host")
}
