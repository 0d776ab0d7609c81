// Package serpapi is a client for the SerpApi search JSON endpoint.
package serpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outpost/internal/resilience"
)

const (
	defaultBaseURL = "https://serpapi.com"
	defaultNum     = 10
)

// Client performs SerpApi searches.
type Client interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// SearchRequest selects the engine and query for one search call.
type SearchRequest struct {
	Engine string
	Query  string
	Num    int
}

// SearchResponse is the subset of the SerpApi payload used by the pipeline.
// Raw holds the response body verbatim.
type SearchResponse struct {
	OrganicResults []Result `json:"organic_results"`
	LocalResults   []Result `json:"local_results"`
	Error          string   `json:"error,omitempty"`

	Raw        []byte `json:"-"`
	HasOrganic bool   `json:"-"`
}

// Result is one element of organic_results or local_results. Field names
// differ by engine.
type Result struct {
	Title       string `json:"title"`
	Link        string `json:"link,omitempty"`
	Website     string `json:"website,omitempty"`
	Snippet     string `json:"snippet,omitempty"`
	Description string `json:"description,omitempty"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a SerpApi client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	num := req.Num
	if num <= 0 {
		num = defaultNum
	}
	q := url.Values{}
	q.Set("engine", req.Engine)
	q.Set("q", req.Query)
	q.Set("api_key", c.apiKey)
	q.Set("num", strconv.Itoa(num))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search.json?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: create request")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		// The request URL carries the api key.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			uerr.URL = c.baseURL + "/search.json"
		}
		return nil, eris.Wrap(err, "serpapi: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("serpapi: unexpected status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "serpapi: unmarshal response")
	}
	var probe struct {
		Organic json.RawMessage `json:"organic_results"`
	}
	_ = json.Unmarshal(body, &probe)
	result.HasOrganic = probe.Organic != nil
	result.Raw = body

	return &result, nil
}
