package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trade-engine/catalog-browser/internal/domain"
)

var (
	// ErrUnexpectedStatus wraps any non-200 response.
	ErrUnexpectedStatus = errors.New("unexpected status")
	// ErrInvalidPayload wraps schema violations in a response body.
	ErrInvalidPayload = errors.New("invalid payload")
)

const userAgent = "catalog-browser/1.0"

// Options configures the remote sources.
type Options struct {
	CatalogURL        string
	RatesURL          string
	Timeout           time.Duration
	RequestsPerMinute int
}

// Client fetches the catalog and the exchange rates. Each fetch is a single
// attempt; callers decide what a failure means.
type Client struct {
	catalogURL string
	ratesURL   string
	client     *http.Client
	limiter    *SafeRateLimiter
	logger     *zap.Logger
}

type catalogResponse struct {
	Courses []domain.Item `json:"courses"`
}

type ratesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// NewClient creates a client. A zero Timeout means no client-side timeout.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		catalogURL: opts.CatalogURL,
		ratesURL:   opts.RatesURL,
		client: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: NewSafeRateLimiter(opts.RequestsPerMinute),
		logger:  logger,
	}
}

// FetchCatalog retrieves and validates {courses: [...]}.
func (c *Client) FetchCatalog(ctx context.Context) ([]domain.Item, error) {
	body, err := c.doRequest(ctx, EndpointCatalog, c.catalogURL)
	if err != nil {
		return nil, err
	}
	if err := validate(catalogSchema, body); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	var resp catalogResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}
	return resp.Courses, nil
}

// FetchRates retrieves {rates: {CODE: multiplier}}.
func (c *Client) FetchRates(ctx context.Context) (map[string]float64, error) {
	body, err := c.doRequest(ctx, EndpointRates, c.ratesURL)
	if err != nil {
		return nil, err
	}
	if err := validate(ratesSchema, body); err != nil {
		return nil, fmt.Errorf("rates: %w", err)
	}

	var resp ratesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode rates response: %w", err)
	}
	return resp.Rates, nil
}

func (c *Client) doRequest(ctx context.Context, endpoint EndpointType, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%s: no url configured", endpoint)
	}
	if err := c.limiter.Wait(ctx, endpoint); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("Fetched",
		zap.String("endpoint", string(endpoint)),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(started)))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w %d: %s", ErrUnexpectedStatus, resp.StatusCode, truncate(body, 256))
	}
	return body, nil
}

func truncate(body []byte, n int) string {
	if len(body) <= n {
		return string(body)
	}
	return string(body[:n]) + "..."
}
