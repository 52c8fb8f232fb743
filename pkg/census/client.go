// Package census provides a client for the Census Data API endpoints used to
// build the tract table: ACS5 profile groups, variable metadata, and state names.
package census

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/acs-tracts/internal/credential"
	"github.com/sells-group/acs-tracts/internal/monitoring"
	"github.com/sells-group/acs-tracts/internal/resilience"
)

// DefaultBaseURL is the public Census Data API host.
const DefaultBaseURL = "https://api.census.gov"

var (
	// ErrNotFound is returned for 404 responses, e.g. an unknown variable code.
	ErrNotFound = eris.New("census: not found")
	// ErrNoContent is returned when the API answers 204 for a query with no rows.
	ErrNoContent = eris.New("census: no content")
)

// Client defines the Census Data API operations.
type Client interface {
	// ProfileGroup fetches every variable of an ACS5 profile group for all
	// tracts in one state. The first row holds the variable codes.
	ProfileGroup(ctx context.Context, year int, profile, state string) ([][]*string, error)
	// VariableLabel fetches the "!!"-delimited label for an ACS5 profile variable.
	VariableLabel(ctx context.Context, year int, code string) (string, error)
	// StateNames fetches NAME for every state from the 2010 decennial SF1 endpoint.
	StateNames(ctx context.Context) ([][]*string, error)
}

// Option configures the Census client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit caps requests per second across all endpoints.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *httpClient) { c.limiter = rate.NewLimiter(limit, burst) }
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) { c.retry = cfg }
}

// WithCredentials sets the API key provider used for data queries.
func WithCredentials(p credential.Provider) Option {
	return func(c *httpClient) { c.creds = p }
}

// WithMetrics records request counts and latency.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(c *httpClient) { c.metrics = m }
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	creds   credential.Provider
	metrics *monitoring.Metrics
}

// NewClient creates a new Census Data API client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: DefaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(10, 10),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) ProfileGroup(ctx context.Context, year int, profile, state string) ([][]*string, error) {
	key, err := c.apiKey(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"get": {fmt.Sprintf("group(%s)", profile)},
		"for": {"tract:*"},
		"in":  {"state:" + state},
	}
	if key != "" {
		params.Set("key", key)
	}
	reqURL := fmt.Sprintf("%s/data/%d/acs/acs5/profile?%s", c.baseURL, year, params.Encode())

	body, err := c.getWithRetry(ctx, "profile", reqURL)
	if err != nil {
		return nil, eris.Wrapf(err, "census: profile %s state %s", profile, state)
	}

	rows, err := decodeRows(body)
	if err != nil {
		return nil, eris.Wrapf(err, "census: profile %s state %s", profile, state)
	}
	return rows, nil
}

// variableResponse is the JSON document for a single variable.
type variableResponse struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Concept string `json:"concept"`
}

func (c *httpClient) VariableLabel(ctx context.Context, year int, code string) (string, error) {
	reqURL := fmt.Sprintf("%s/data/%d/acs/acs5/profile/variables/%s.json", c.baseURL, year, url.PathEscape(code))

	body, err := c.getWithRetry(ctx, "label", reqURL)
	if err != nil {
		return "", eris.Wrapf(err, "census: label for %s", code)
	}

	var v variableResponse
	if err := json.Unmarshal(body, &v); err != nil {
		return "", eris.Wrapf(err, "census: parse label for %s", code)
	}
	if v.Label == "" {
		return "", eris.Errorf("census: empty label for %s", code)
	}
	return v.Label, nil
}

func (c *httpClient) StateNames(ctx context.Context) ([][]*string, error) {
	key, err := c.apiKey(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{"get": {"NAME"}, "for": {"state:*"}}
	if key != "" {
		params.Set("key", key)
	}
	reqURL := fmt.Sprintf("%s/data/2010/dec/sf1?%s", c.baseURL, params.Encode())

	body, err := c.getWithRetry(ctx, "states", reqURL)
	if err != nil {
		return nil, eris.Wrap(err, "census: state names")
	}

	rows, err := decodeRows(body)
	if err != nil {
		return nil, eris.Wrap(err, "census: state names")
	}
	return rows, nil
}

func (c *httpClient) apiKey(ctx context.Context) (string, error) {
	if c.creds == nil {
		return "", nil
	}
	key, err := c.creds.APIKey(ctx)
	if err != nil {
		return "", eris.Wrap(err, "census: api key")
	}
	return key, nil
}

func (c *httpClient) getWithRetry(ctx context.Context, endpoint, reqURL string) ([]byte, error) {
	start := time.Now()
	cfg := c.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("census", endpoint)
	}

	body, err := resilience.Do(ctx, cfg, func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, reqURL)
	})
	c.metrics.ObserveRequest(endpoint, err, time.Since(start))
	return body, err
}

func (c *httpClient) get(ctx context.Context, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "census: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "census: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = redact(ue.URL)
		}
		return nil, eris.Wrap(err, "census: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "census: read body"), resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNoContent:
		return nil, ErrNoContent
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("census: status %d", resp.StatusCode), resp.StatusCode)
	default:
		return nil, eris.Errorf("census: status %d: %s", resp.StatusCode, snippet(body))
	}

	// An invalid key yields 200 with an HTML page instead of JSON.
	if trimmed := bytes.TrimSpace(body); len(trimmed) == 0 || (trimmed[0] != '[' && trimmed[0] != '{') {
		zap.L().Debug("census: non-json response", zap.String("url", redact(reqURL)))
		return nil, eris.Errorf("census: non-JSON response: %s", snippet(body))
	}

	return body, nil
}

// decodeRows parses the API's array-of-arrays shape. Null cells stay nil;
// numbers keep their literal text.
func decodeRows(body []byte) ([][]*string, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw [][]any
	if err := dec.Decode(&raw); err != nil {
		return nil, eris.Wrap(err, "decode rows")
	}

	rows := make([][]*string, len(raw))
	for i, r := range raw {
		row := make([]*string, len(r))
		for j, cell := range r {
			row[j] = cellString(cell)
		}
		rows[i] = row
	}
	return rows, nil
}

func cellString(v any) *string {
	var s string
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s = t
	case json.Number:
		s = t.String()
	default:
		s = fmt.Sprint(t)
	}
	return &s
}

func snippet(body []byte) string {
	const limit = 200
	s := string(bytes.TrimSpace(body))
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// redact strips the key query parameter before logging a URL.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
