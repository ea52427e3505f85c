package openml

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/dsrank/internal/domain"
	"github.com/kailas-cloud/dsrank/internal/metrics"
)

// DefaultBaseURL is the public OpenML JSON API.
const DefaultBaseURL = "https://www.openml.org/api/v1/json"

// codeNoResults is the registry error code for an exhausted listing.
const codeNoResults = "372"

// Config holds the registry client settings.
type Config struct {
	BaseURL           string
	APIKey            string
	PageSize          int
	MaxDatasets       int // 0 = all
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration

	// Breaker opens after BreakerMinRequests calls with a failure ratio of at least
	// BreakerFailureRatio and stays open for BreakerCooldown. Ratio 0 disables it.
	BreakerFailureRatio float64
	BreakerMinRequests  uint32
	BreakerCooldown     time.Duration
	HTTPClient          *http.Client
	Logger              *zap.Logger
}

// Client talks to the OpenML dataset registry.
type Client struct {
	http        *http.Client
	baseURL     string
	apiKey      string
	pageSize    int
	maxDatasets int
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	logger      *zap.Logger
}

// NewClient creates a registry client.
func NewClient(cfg *Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		http:        hc,
		baseURL:     strings.TrimRight(base, "/"),
		apiKey:      cfg.APIKey,
		pageSize:    pageSize,
		maxDatasets: cfg.MaxDatasets,
		limiter:     rate.NewLimiter(limit, burst),
		logger:      logger,
	}
	if cfg.BreakerFailureRatio > 0 {
		c.breaker = newBreaker(cfg, logger)
	}
	return c
}

func newBreaker(cfg *Config, logger *zap.Logger) *gobreaker.CircuitBreaker {
	minRequests := cfg.BreakerMinRequests
	if minRequests == 0 {
		minRequests = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openml",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= minRequests && failureRatio >= cfg.BreakerFailureRatio
		},
		// an exhausted listing or a 4xx for one id says nothing about registry health
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, domain.ErrNoMoreResults) {
				return true
			}
			var apiErr *APIError
			return errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Registry circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// ListDatasets pages through the registry listing until it is exhausted or MaxDatasets is reached.
func (c *Client) ListDatasets(ctx context.Context) ([]domain.DatasetRef, error) {
	var out []domain.DatasetRef

	for offset := 0; ; offset += c.pageSize {
		var page listResponse
		err := c.get(ctx, "list", fmt.Sprintf("/data/list/limit/%d/offset/%d", c.pageSize, offset), &page)
		if errors.Is(err, domain.ErrNoMoreResults) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list datasets at offset %d: %w", offset, err)
		}

		for _, d := range page.Data.Dataset {
			out = append(out, domain.DatasetRef{ID: string(d.DID), Name: d.Name.String()})
			if c.maxDatasets > 0 && len(out) >= c.maxDatasets {
				return out, nil
			}
		}

		c.logger.Debug("Registry page listed",
			zap.Int("offset", offset),
			zap.Int("page_size", len(page.Data.Dataset)),
			zap.Int("total", len(out)),
		)

		if len(page.Data.Dataset) < c.pageSize {
			break
		}
	}

	return out, nil
}

// GetDataset fetches the description of one dataset.
// Name and Description are empty when the registry returns a non-string value.
func (c *Client) GetDataset(ctx context.Context, id string) (domain.Dataset, error) {
	var resp detailResponse
	if err := c.get(ctx, "get", "/data/"+url.PathEscape(id), &resp); err != nil {
		return domain.Dataset{}, fmt.Errorf("get dataset %s: %w", id, err)
	}

	d := resp.Description
	return domain.Dataset{
		ID:          id,
		Title:       d.Name.String(),
		Description: d.Description.String(),
	}, nil
}

// HealthCheck probes the listing endpoint with a single-row page.
func (c *Client) HealthCheck(ctx context.Context) error {
	var page listResponse
	err := c.get(ctx, "health", "/data/list/limit/1/offset/0", &page)
	if err != nil && !errors.Is(err, domain.ErrNoMoreResults) {
		return err
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, v any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if c.breaker == nil {
		return c.do(ctx, endpoint, path, v)
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, endpoint, path, v)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.RegistryRequestDuration.WithLabelValues(endpoint, "breaker_open").Observe(0)
		return fmt.Errorf("%s: %w: %w", endpoint, domain.ErrRegistryError, err)
	}
	return err //nolint:wrapcheck // already wrapped by do
}

func (c *Client) do(ctx context.Context, endpoint, path string, v any) error {
	u := c.baseURL + path
	if c.apiKey != "" {
		u += "?api_key=" + url.QueryEscape(c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	status := "error"
	defer func() {
		metrics.RegistryRequestDuration.WithLabelValues(endpoint, status).Observe(time.Since(start).Seconds())
	}()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", endpoint, domain.ErrRegistryError, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w: %w", endpoint, domain.ErrRegistryError, err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := parseAPIError(resp.StatusCode, body)
		if apiErr.Code == codeNoResults {
			status = "no_results"
			return domain.ErrNoMoreResults
		}
		return apiErr
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s response: %w: %w", endpoint, domain.ErrRegistryError, err)
	}
	status = "ok"
	return nil
}

// APIError is a non-200 registry response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("registry status %d code %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("registry status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return domain.ErrRegistryError }

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error.Code != "" {
		apiErr.Code = string(er.Error.Code)
		apiErr.Message = er.Error.Message
		return apiErr
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	apiErr.Message = msg
	return apiErr
}

// --- wire types ---

type listResponse struct {
	Data struct {
		Dataset []listItem `json:"dataset"`
	} `json:"data"`
}

type listItem struct {
	DID  flexString `json:"did"`
	Name stringOnly `json:"name"`
}

type detailResponse struct {
	Description struct {
		ID          flexString `json:"id"`
		Name        stringOnly `json:"name"`
		Description stringOnly `json:"description"`
	} `json:"data_set_description"`
}

type errorResponse struct {
	Error struct {
		Code    flexString `json:"code"`
		Message string     `json:"message"`
	} `json:"error"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}

// stringOnly keeps JSON strings and drops any other value (arrays, objects, numbers) to "".
type stringOnly string

func (s *stringOnly) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		*s = ""
		return nil //nolint:nilerr // non-string values are treated as absent
	}
	*s = stringOnly(v)
	return nil
}

func (s stringOnly) String() string { return string(s) }
