package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestExtractText(t *testing.T) {
	html := `<!doctype html>
<html>
<head><title> Acme Plumbing | Austin </title><style>body{color:red}</style></head>
<body>
  <header><a href="/">Acme</a></header>
  <nav><ul><li><a href="/">Home</a></li><li><a href="/about">About</a></li></ul></nav>
  <ul class="social"><li><a href="https://x.com/acme">X</a></li><li><a href="https://fb.com/acme">Facebook</a></li></ul>
  <h1>Family-owned plumbers</h1>
  <p>We fix   leaks,
     water heaters and drains across Austin.</p>
  <ul><li>24/7 emergency service</li><li>Licensed &amp; insured</li></ul>
  <table><tr><td>Hours</td><td>9-5</td></tr></table>
  <form><input name="email"><button>Subscribe</button></form>
  <script>var tracking = true;</script>
  <img alt="logo" src="/logo.png">
  <footer>© 2024 Acme</footer>
</body>
</html>`

	title, text, err := ExtractText([]byte(html))
	require.NoError(t, err)

	assert.Equal(t, "Acme Plumbing | Austin", title)
	assert.Equal(t,
		"Family-owned plumbers We fix leaks, water heaters and drains across Austin. 24/7 emergency service Licensed & insured",
		text)
}

func TestExtractText_PrefersMain(t *testing.T) {
	html := `<html><body><div>Cookie banner text</div><main><p>Commercial HVAC contractor.</p></main></body></html>`

	_, text, err := ExtractText([]byte(html))
	require.NoError(t, err)
	assert.Equal(t, "Commercial HVAC contractor.", text)
}

func TestExtractText_Empty(t *testing.T) {
	_, text, err := ExtractText([]byte(`<html><body><script>x()</script></body></html>`))
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestDecodeBody(t *testing.T) {
	latin1, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte("<p>Café Plomería</p>"))
	require.NoError(t, err)

	t.Run("header charset", func(t *testing.T) {
		out, err := DecodeBody("text/html; charset=ISO-8859-1", latin1)
		require.NoError(t, err)
		assert.Equal(t, "<p>Café Plomería</p>", string(out))
	})

	t.Run("meta charset", func(t *testing.T) {
		body := append([]byte(`<meta charset="windows-1252">`), latin1...)
		out, err := DecodeBody("text/html", body)
		require.NoError(t, err)
		assert.Contains(t, string(out), "Café Plomería")
	})

	t.Run("utf-8 passthrough", func(t *testing.T) {
		in := []byte("<p>Café</p>")
		out, err := DecodeBody("text/html; charset=utf-8", in)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("unknown charset", func(t *testing.T) {
		_, err := DecodeBody("text/html; charset=klingon", []byte("x"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported charset")
	})
}
