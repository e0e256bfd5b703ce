package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"reward-engine/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// HTTPClient implements CampaignSource against the publisher's HTTP API.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a publisher HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ CampaignSource = (*HTTPClient)(nil)

// campaignPayload is the publisher's wire format for a campaign.
type campaignPayload struct {
	ID             string   `json:"id"`
	Pool           string   `json:"pool"`
	Platform       string   `json:"platform"`
	BudgetUSD      float64  `json:"budget_usd"`
	EndDate        string   `json:"end_date"` // YYYY-MM-DD
	ContentFilters []string `json:"content_filters,omitempty"`
}

// FetchActiveCampaigns retrieves the active campaign set with retries
// and exponential backoff.
func (c *HTTPClient) FetchActiveCampaigns(ctx context.Context) ([]*domain.Campaign, error) {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
			continue
		}

		var payloads []campaignPayload
		if err := json.Unmarshal(body, &payloads); err != nil {
			lastErr = fmt.Errorf("unmarshal campaigns: %w", err)
			continue
		}

		campaigns := make([]*domain.Campaign, 0, len(payloads))
		for _, p := range payloads {
			campaign, err := p.toDomain()
			if err != nil {
				// Malformed entries are not retried; the payload
				// itself is broken.
				return nil, err
			}
			campaigns = append(campaigns, campaign)
		}
		return campaigns, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (p campaignPayload) toDomain() (*domain.Campaign, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("campaign missing id")
	}
	endDate, err := time.Parse("2006-01-02", p.EndDate)
	if err != nil {
		return nil, fmt.Errorf("campaign %s: parse end_date %q: %w", p.ID, p.EndDate, err)
	}
	return &domain.Campaign{
		ID:             p.ID,
		Pool:           p.Pool,
		Platform:       p.Platform,
		BudgetUSD:      p.BudgetUSD,
		EndDate:        endDate,
		ContentFilters: p.ContentFilters,
	}, nil
}
