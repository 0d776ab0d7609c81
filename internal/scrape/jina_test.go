package scrape

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outpost/internal/resilience"
	"github.com/sells-group/outpost/pkg/jina"
	jinamocks "github.com/sells-group/outpost/pkg/jina/mocks"
)

var longContent = "# Acme Plumbing\n\nWe repair leaks, install water heaters, and clear drains for homes and businesses across Austin and Round Rock."

func TestJinaAdapter_NameSupports(t *testing.T) {
	t.Parallel()
	adapter := NewJinaAdapter(jinamocks.NewMockClient(t))
	assert.Equal(t, "jina", adapter.Name())
	assert.True(t, adapter.Supports("https://acme.com"))
}

func TestJinaAdapter_Scrape_Success(t *testing.T) {
	t.Parallel()
	mock := jinamocks.NewMockClient(t)
	adapter := NewJinaAdapter(mock)

	mock.On("Read", context.Background(), "https://acme.com").Return(&jina.ReadResponse{
		Code: 200,
		Data: jina.ReadData{URL: "https://acme.com", Title: "Acme Plumbing", Content: longContent},
	}, nil)

	result, err := adapter.Scrape(context.Background(), "https://acme.com")
	require.NoError(t, err)
	assert.Equal(t, "jina", result.Source)
	assert.Equal(t, "Acme Plumbing", result.Title)
	assert.True(t, strings.HasPrefix(result.Text, "Acme Plumbing We repair leaks"))
}

func TestJinaAdapter_Scrape_DropsMarkup(t *testing.T) {
	t.Parallel()
	mock := jinamocks.NewMockClient(t)
	adapter := NewJinaAdapter(mock)

	content := "![logo](https://acme.com/logo.png)\n# Acme Plumbing\n\n" + longContent +
		"\n\n[Contact us](https://acme.com/contact) for a quote.\n\n| Plan | Price |\n|---|---|\n| Basic | $99 |\n"
	mock.On("Read", context.Background(), "https://acme.com").Return(&jina.ReadResponse{
		Code: 200,
		Data: jina.ReadData{URL: "https://acme.com", Content: content},
	}, nil)

	result, err := adapter.Scrape(context.Background(), "https://acme.com")
	require.NoError(t, err)
	assert.NotContains(t, result.Text, "](")
	assert.NotContains(t, result.Text, "|---|")
	assert.NotContains(t, result.Text, "logo")
	assert.NotContains(t, result.Text, "$99")
	assert.Contains(t, result.Text, "Contact us for a quote.")
	assert.True(t, strings.HasPrefix(result.Text, "Acme Plumbing"))
}

func TestJinaAdapter_Scrape_ClientError(t *testing.T) {
	t.Parallel()
	mock := jinamocks.NewMockClient(t)
	adapter := NewJinaAdapter(mock)

	mock.On("Read", context.Background(), "https://fail.com").Return(nil, errors.New("connection refused"))

	_, err := adapter.Scrape(context.Background(), "https://fail.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestJinaAdapter_CircuitOpens(t *testing.T) {
	t.Parallel()
	mock := jinamocks.NewMockClient(t)
	adapter := NewJinaAdapter(mock)

	mock.On("Read", context.Background(), "https://fail.com").
		Return(&jina.ReadResponse{Code: 200, Data: jina.ReadData{Content: "Just a moment..."}}, nil).
		Times(3)

	for range 3 {
		_, err := adapter.Scrape(context.Background(), "https://fail.com")
		require.Error(t, err)
	}

	assert.False(t, adapter.Supports("https://fail.com"))
	_, err := adapter.Scrape(context.Background(), "https://fail.com")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestNeedsFallback(t *testing.T) {
	tests := []struct {
		name string
		resp *jina.ReadResponse
		want bool
	}{
		{"nil", nil, true},
		{"error code", &jina.ReadResponse{Code: 451, Data: jina.ReadData{Content: longContent}}, true},
		{"too short", &jina.ReadResponse{Code: 200, Data: jina.ReadData{Content: "hi"}}, true},
		{"challenge", &jina.ReadResponse{Code: 200, Data: jina.ReadData{Content: "Checking your browser before accessing acme.com. " + strings.Repeat(".", 80)}}, true},
		{"long page mentioning cloudflare", &jina.ReadResponse{Code: 200, Data: jina.ReadData{Content: strings.Repeat("We use Cloudflare for our CDN. ", 40)}}, false},
		{"ok", &jina.ReadResponse{Code: 200, Data: jina.ReadData{Content: longContent}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, needsFallback(tt.resp))
		})
	}
}
