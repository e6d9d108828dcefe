// Package client provides the authenticated FreshBooks HTTP client with
// OAuth2 token refresh and error classification.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/Sternrassler/freshbooks-report/pkg/apperr"
	"github.com/Sternrassler/freshbooks-report/pkg/logging"
	"github.com/Sternrassler/freshbooks-report/pkg/tokenstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL is the FreshBooks API root.
	DefaultBaseURL = "https://api.freshbooks.com"

	// TokenPath is the OAuth2 token endpoint, relative to the base URL.
	TokenPath = "/auth/oauth/token"

	// APIVersion is sent as the Api-Version header on every request.
	APIVersion = "alpha"

	// DefaultTimeout bounds a single HTTP exchange.
	DefaultTimeout = 60 * time.Second

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 32 << 20
)

// Prometheus metrics for FreshBooks client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "freshbooks_requests_total",
		Help: "Total FreshBooks API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "freshbooks_request_duration_seconds",
		Help:    "FreshBooks API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "freshbooks_errors_total",
		Help: "Total FreshBooks API errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassAuth represents 401 responses.
	ErrorClassAuth ErrorClass = "auth"

	// ErrorClassClient represents other 4xx responses.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Client is the authenticated FreshBooks client. It owns the token lifecycle:
// the token is loaded once from the store and written back after each refresh.
type Client struct {
	httpClient *http.Client
	oauth      *oauth2.Config
	store      tokenstore.Store
	config     Config
	logger     zerolog.Logger
	now        func() time.Time

	mu    sync.Mutex
	token *tokenstore.Token
}

// Config holds the client configuration.
type Config struct {
	// Store holds the credential token (REQUIRED).
	Store tokenstore.Store

	// OAuth application credentials (REQUIRED).
	ClientID     string
	ClientSecret string

	// BaseURL overrides the API root (tests point this at a mock server).
	BaseURL string

	// Timeout bounds each HTTP exchange, token refresh included.
	Timeout time.Duration

	// HTTPClient replaces the default transport. Its Timeout is left untouched.
	HTTPClient *http.Client
}

// DefaultConfig returns a configuration against the production API.
func DefaultConfig(store tokenstore.Store, clientID, clientSecret string) Config {
	return Config{
		Store:        store,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		BaseURL:      DefaultBaseURL,
		Timeout:      DefaultTimeout,
	}
}

// New creates a client and loads the current token from the store.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("token store is required")
	}

	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client id and client secret are required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	token, err := cfg.Store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load token: %w", err)
	}

	logger := logging.NewLogger("freshbooks-client")

	return &Client{
		httpClient: httpClient,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.BaseURL + TokenPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		store:  cfg.Store,
		config: cfg,
		logger: logger,
		now:    time.Now,
		token:  token,
	}, nil
}

// Get fetches path relative to the base URL and returns the response body.
//
// A 401 response, or a token already past its expiry, triggers one refresh
// against the token endpoint. The refreshed token is persisted before the
// request is retried. A second rejection surfaces apperr.ErrAuth.
func (c *Client) Get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	target := c.config.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	refreshed := false
	if c.currentToken().Expired(c.now()) {
		c.logger.Debug().Str("endpoint", path).Msg("Access token expired, refreshing before request")
		if err := c.refresh(ctx); err != nil {
			return nil, err
		}
		refreshed = true
	}

	body, status, err := c.do(ctx, path, target)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		if refreshed {
			return nil, apperr.Errorf(apperr.ErrAuth, "GET "+path, "access token rejected after refresh")
		}

		c.logger.Info().Str("endpoint", path).Msg("Access token rejected, refreshing")
		if err := c.refresh(ctx); err != nil {
			return nil, err
		}

		body, status, err = c.do(ctx, path, target)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			return nil, apperr.Errorf(apperr.ErrAuth, "GET "+path, "access token rejected after refresh")
		}
	}

	if status < 200 || status >= 300 {
		return nil, &APIError{
			StatusCode: status,
			ErrorClass: classifyStatus(status),
			Endpoint:   path,
			Message:    summarize(body),
		}
	}

	return body, nil
}

// do executes one GET and returns the body and status code.
func (c *Client) do(ctx context.Context, endpoint, target string) ([]byte, int, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.currentToken().AccessToken)
	req.Header.Set("Api-Version", APIVersion)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("query", req.URL.RawQuery).
		Msg("Executing FreshBooks request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, 0, fmt.Errorf("GET %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, 0, fmt.Errorf("read response body: %w", err)
	}

	requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		class := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(class)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("FreshBooks request error")
	}

	return body, resp.StatusCode, nil
}

// classifyStatus categorizes a failed status code for observability.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusUnauthorized:
		return ErrorClassAuth
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// summarize trims a response body for error messages.
func summarize(body []byte) string {
	const limit = 200

	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func (c *Client) currentToken() *tokenstore.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Token returns a copy of the token currently in use.
func (c *Client) Token() tokenstore.Token {
	return *c.currentToken()
}

// SetClock replaces the time source used for expiry checks (for testing).
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
}
