package sensorcli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/sensorboard/internal/domain/model"
)

// apiClient talks to a running sensorboard server with basic auth.
type apiClient struct {
	client   *http.Client
	baseURL  string
	user     string
	password string
}

func newAPIClient(cfg *LoadConfig) *apiClient {
	return &apiClient{
		client:   &http.Client{Timeout: cfg.Timeout},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		user:     cfg.User,
		password: cfg.Password,
	}
}

func (c *apiClient) get(ctx context.Context, path string, query url.Values, requestID string) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	return c.client.Do(req)
}

// health checks GET /healthz.
func (c *apiClient) health(ctx context.Context) error {
	resp, err := c.get(ctx, "/healthz", nil, "")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	return nil
}

// total returns the number of stored readings as reported by GET /readings.
func (c *apiClient) total(ctx context.Context) (int, error) {
	resp, err := c.get(ctx, "/readings", url.Values{"per_page": {"1"}}, "")
	if err != nil {
		return 0, err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("GET /readings returned status %d", resp.StatusCode)
	}
	var page struct {
		Total int `json:"total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return 0, fmt.Errorf("decode /readings: %w", err)
	}
	return page.Total, nil
}

// Submission outcomes.
const (
	outcomeCreated     = "created"
	outcomeRejected    = "rejected"
	outcomeRateLimited = "rate_limited"
	outcomeFailed      = "failed"
)

// measure submits one reading and classifies the response.
func (c *apiClient) measure(ctx context.Context, r model.Reading, requestID string) (string, time.Duration) {
	q := url.Values{"reading": {strconv.FormatFloat(r.Value, 'f', -1, 64)}}
	if r.Mode != nil {
		q.Set("m", strconv.Itoa(int(*r.Mode)))
	}
	start := time.Now()
	resp, err := c.get(ctx, "/measure", q, requestID)
	elapsed := time.Since(start)
	if err != nil {
		return outcomeFailed, elapsed
	}
	defer drain(resp)

	switch {
	case resp.StatusCode == http.StatusCreated:
		return outcomeCreated, elapsed
	case resp.StatusCode == http.StatusTooManyRequests:
		return outcomeRateLimited, elapsed
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return outcomeRejected, elapsed
	default:
		return outcomeFailed, elapsed
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
