package forex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public Frankfurter endpoint.
const DefaultBaseURL = "https://api.frankfurter.app"

// Client fetches the latest rate for one currency pair from Frankfurter.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	from        string
	to          string
	rateLimiter *rate.Limiter
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimiter replaces the default limiter.
func WithRateLimiter(l *rate.Limiter) ClientOption {
	return func(c *Client) { c.rateLimiter = l }
}

// NewClient creates a new Frankfurter client
func NewClient(baseURL, from, to string, timeout time.Duration, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		from:       strings.ToUpper(from),
		to:         strings.ToUpper(to),
		// the feed updates once per working day
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute), 3),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type latestResponse struct {
	Amount float64                    `json:"amount"`
	Base   string                     `json:"base"`
	Date   string                     `json:"date"`
	Rates  map[string]decimal.Decimal `json:"rates"`
}

// FetchRate returns the latest published rate and its publication date.
func (c *Client) FetchRate(ctx context.Context) (decimal.Decimal, time.Time, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("rate limiter error: %w", err)
	}

	params := url.Values{}
	params.Add("from", c.from)
	params.Add("to", c.to)
	reqURL := fmt.Sprintf("%s/latest?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Zero, time.Time{}, fmt.Errorf("%w: status %d: %s", ErrRateUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("failed to decode response: %w", err)
	}

	value, ok := payload.Rates[c.to]
	if !ok {
		return decimal.Zero, time.Time{}, fmt.Errorf("%w: %s not in response", ErrRateUnavailable, c.to)
	}
	if !value.IsPositive() {
		return decimal.Zero, time.Time{}, fmt.Errorf("%w: got %s", ErrInvalidRate, value)
	}

	date, err := time.Parse(time.DateOnly, payload.Date)
	if err != nil {
		date = time.Now().UTC()
	}
	return value, date, nil
}
