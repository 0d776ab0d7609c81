package scrape

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBlock(t *testing.T) {
	largeWithCaptcha := "<html><body>" + strings.Repeat("Licensed plumbers serving Austin. ", 1000) +
		`<script src="https://www.google.com/recaptcha/api.js"></script></body></html>`

	tests := []struct {
		name    string
		status  int
		header  http.Header
		body    string
		blocked bool
		want    BlockType
	}{
		{
			name:    "cloudflare 403 header",
			status:  403,
			header:  http.Header{"Cf-Ray": {"abc123"}},
			blocked: true,
			want:    BlockCloudflare,
		},
		{
			name:    "cloudflare 503 server",
			status:  503,
			header:  http.Header{"Server": {"cloudflare"}},
			blocked: true,
			want:    BlockCloudflare,
		},
		{
			name:    "rate limited",
			status:  429,
			blocked: true,
			want:    BlockRateLimited,
		},
		{
			name:    "challenge interstitial",
			status:  200,
			body:    "<html><title>Just a moment...</title></html>",
			blocked: true,
			want:    BlockCloudflare,
		},
		{
			name:    "captcha page",
			status:  200,
			body:    "<html><body>Please complete the reCAPTCHA to continue</body></html>",
			blocked: true,
			want:    BlockCaptcha,
		},
		{
			name:    "js shell",
			status:  200,
			body:    "<html><noscript>Enable JavaScript to continue</noscript></html>",
			blocked: true,
			want:    BlockJSShell,
		},
		{
			name:   "large page embedding recaptcha",
			status: 200,
			body:   largeWithCaptcha,
		},
		{
			name:   "clean page",
			status: 200,
			body:   "<html><body>Welcome to Acme Plumbing. 24/7 emergency service.</body></html>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := tt.header
			if header == nil {
				header = http.Header{}
			}
			resp := &http.Response{StatusCode: tt.status, Header: header}
			blocked, bt := DetectBlock(resp, []byte(tt.body))
			assert.Equal(t, tt.blocked, blocked)
			assert.Equal(t, tt.want, bt)
		})
	}
}

func TestDetectBlock_NilResponse(t *testing.T) {
	blocked, bt := DetectBlock(nil, nil)
	assert.False(t, blocked)
	assert.Equal(t, BlockNone, bt)
}
