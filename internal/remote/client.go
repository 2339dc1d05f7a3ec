// Package remote provides a citation.Accessor backed by the HTTP citation API.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/matsen/citenet/internal/citation"
	"github.com/matsen/citenet/internal/doi"
	"github.com/matsen/citenet/internal/reference"
)

const (
	// BaseURL is the default API address.
	BaseURL = "http://localhost:3333"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// RateLimit is the default request rate in requests per second.
	RateLimit = 10.0

	// MaxLimit is the largest page the citation endpoints return.
	MaxLimit = 1000
)

var (
	_ citation.Accessor = (*Client)(nil)
	_ citation.Limited  = (*Client)(nil)
)

// Client is a rate-limited HTTP client for the citation API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	baseURL    string
	logger     *slog.Logger
	tripAfter  uint32
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets the API address.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithRateLimit sets the request rate and burst.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// WithLogger sets the logger used for breaker state changes.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithBreakerThreshold sets how many consecutive failures open the breaker.
func WithBreakerThreshold(n uint32) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.tripAfter = n
		}
	}
}

// NewClient creates a new citation API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
		logger:     slog.New(slog.DiscardHandler),
		tripAfter:  5,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "citation-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.tripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return !countsAsFailure(err)
		},
	})

	return c
}

// escapeDOI escapes each path segment of a DOI, keeping the slashes.
func escapeDOI(d string) string {
	parts := strings.Split(d, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// checkHTTPErrors returns an error if the HTTP response indicates a problem.
func checkHTTPErrors(resp *http.Response, key string) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return citation.NotFound(key)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 400:
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP %d", resp.StatusCode),
			DOI:        key,
		}
	}
	return nil
}

// get performs a GET request through the limiter and breaker and returns
// the body.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, key string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	body, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
		}
		defer resp.Body.Close()

		if err := checkHTTPErrors(resp, key); err != nil {
			return nil, err
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: reading body: %v", ErrNetworkError, err)
		}
		return data, nil
	})
	if err != nil {
		return nil, breakerError(err)
	}
	return body.([]byte), nil
}

// workResponse is the /works/{doi} payload.
type workResponse struct {
	DOI     string   `json:"doi"`
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
	Year    *int     `json:"year"`
	Journal string   `json:"journal"`
}

// Metadata fetches the record for a work.
func (c *Client) Metadata(ctx context.Context, id string) (*reference.Work, error) {
	key := doi.Normalize(id)
	data, err := c.get(ctx, "/works/"+escapeDOI(key), nil, key)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(string(data)) == "null" {
		return nil, citation.NotFound(key)
	}
	var wr workResponse
	if err := json.Unmarshal(data, &wr); err != nil {
		return nil, fmt.Errorf("%w: parsing work: %v", ErrInvalidResponse, err)
	}

	w := &reference.Work{
		DOI:     doi.Normalize(wr.DOI),
		Title:   wr.Title,
		Year:    wr.Year,
		Journal: wr.Journal,
	}
	if w.DOI == "" {
		w.DOI = key
	}
	for _, name := range wr.Authors {
		if name = strings.TrimSpace(name); name != "" {
			w.Authors = append(w.Authors, reference.Author{Name: name})
		}
	}
	return w, nil
}

// listResponse is the /citations/{doi}/citing|cited payload.
type listResponse struct {
	DOI    string   `json:"doi"`
	Papers []string `json:"papers"`
}

// MaxResults reports the page size Forward and Reverse are clipped to.
func (c *Client) MaxResults() int {
	return MaxLimit
}

// Forward returns up to MaxLimit references made by the work.
func (c *Client) Forward(ctx context.Context, id string) ([]string, error) {
	return c.Cited(ctx, id, MaxLimit)
}

// Reverse returns up to MaxLimit works citing the work.
func (c *Client) Reverse(ctx context.Context, id string) ([]string, error) {
	return c.Citing(ctx, id, MaxLimit)
}

// Cited returns up to limit references made by the work.
func (c *Client) Cited(ctx context.Context, id string, limit int) ([]string, error) {
	return c.list(ctx, id, "cited", limit)
}

// Citing returns up to limit works citing the work.
func (c *Client) Citing(ctx context.Context, id string, limit int) ([]string, error) {
	return c.list(ctx, id, "citing", limit)
}

func (c *Client) list(ctx context.Context, id, direction string, limit int) ([]string, error) {
	key := doi.Normalize(id)
	if limit <= 0 || limit > MaxLimit {
		limit = MaxLimit
	}
	params := url.Values{"limit": {strconv.Itoa(limit)}}

	data, err := c.get(ctx, "/citations/"+escapeDOI(key)+"/"+direction, params, key)
	if err != nil {
		return nil, err
	}

	var lr listResponse
	if err := json.Unmarshal(data, &lr); err != nil {
		return nil, fmt.Errorf("%w: parsing %s list: %v", ErrInvalidResponse, direction, err)
	}

	out := doi.NormalizeAll(lr.Papers)
	slices.Sort(out)
	return out, nil
}

// CitationCount returns how many works cite the work.
func (c *Client) CitationCount(ctx context.Context, id string) (int, error) {
	key := doi.Normalize(id)
	data, err := c.get(ctx, "/citations/"+escapeDOI(key)+"/count", nil, key)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Count int `json:"citation_count"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return 0, fmt.Errorf("%w: parsing count: %v", ErrInvalidResponse, err)
	}
	return resp.Count, nil
}
