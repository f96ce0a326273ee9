package zendesk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 16 << 20

// Config holds connection settings for the Zendesk REST API.
type Config struct {
	// BaseURL overrides the URL derived from Subdomain. Must use HTTPS.
	BaseURL   string
	Subdomain string
	Email     string
	APIToken  string

	// RequestsPerMinute caps the steady-state request rate of the client.
	// Zero disables client-side limiting.
	RequestsPerMinute int

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is a minimal Zendesk API client covering search, ticket tags and
// user profiles.
type Client struct {
	baseURL    string
	email      string
	apiToken   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient validates cfg and builds a client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		if cfg.Subdomain == "" {
			return nil, fmt.Errorf("zendesk: subdomain or base URL required")
		}
		baseURL = fmt.Sprintf("https://%s.zendesk.com/api/v2", cfg.Subdomain)
	}
	if !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("zendesk: API client requires HTTPS (got %q)", baseURL)
	}
	if cfg.Email == "" || cfg.APIToken == "" {
		return nil, fmt.Errorf("zendesk: email and API token required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.RequestsPerMinute / 60
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), burst)
	}

	return &Client{
		baseURL:    baseURL,
		email:      cfg.Email,
		apiToken:   cfg.APIToken,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
	}, nil
}

// BaseURL returns the API root all relative paths are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends an authenticated JSON request. path is relative to the base URL
// and may carry a query string. Non-2xx responses become *APIError.
func (c *Client) do(ctx context.Context, method, path string, requestBody, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("zendesk: waiting for rate limiter: %w", err)
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("zendesk: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("zendesk: creating request: %w", err)
	}
	request.SetBasicAuth(c.email+"/token", c.apiToken)
	request.Header.Set("Accept", "application/json")
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("zendesk: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("zendesk: reading response body: %w", err)
	}

	c.logger.Debug("zendesk request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", response.StatusCode),
		zap.Duration("duration", time.Since(started)))

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return parseAPIError(method, path, response, body)
	}
	if result == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("zendesk: decoding %s %s: %w", method, path, err)
	}
	return nil
}
