package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/freshbooks-report/internal/testutil"
	"github.com/Sternrassler/freshbooks-report/pkg/apperr"
	"github.com/Sternrassler/freshbooks-report/pkg/tokenstore"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

// memStore is an in-memory token store that counts saves.
type memStore struct {
	mu      sync.Mutex
	token   *tokenstore.Token
	saves   int
	loadErr error
}

func (s *memStore) Load(ctx context.Context) (*tokenstore.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	tok := *s.token
	return &tok, nil
}

func (s *memStore) Save(ctx context.Context, token *tokenstore.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := *token
	s.token = &tok
	s.saves++
	return nil
}

func (s *memStore) snapshot() (tokenstore.Token, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.token, s.saves
}

// newTestClient builds a client against the mock with the given stored access token.
func newTestClient(t *testing.T, mock *testutil.MockFreshBooks, access string) (*Client, *memStore) {
	t.Helper()

	store := &memStore{token: &tokenstore.Token{
		AccessToken:  access,
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}}

	cfg := DefaultConfig(store, "client-id", "client-secret")
	cfg.BaseURL = mock.URL()

	c, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return c, store
}

func TestNew_Validation(t *testing.T) {
	store := &memStore{token: &tokenstore.Token{AccessToken: "a"}}

	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:   "valid config",
			config: DefaultConfig(store, "id", "secret"),
		},
		{
			name:        "nil store",
			config:      Config{ClientID: "id", ClientSecret: "secret"},
			expectError: true,
			errorMsg:    "token store is required",
		},
		{
			name:        "missing secret",
			config:      Config{Store: store, ClientID: "id"},
			expectError: true,
			errorMsg:    "client id and client secret are required",
		},
		{
			name:        "negative timeout",
			config:      Config{Store: store, ClientID: "id", ClientSecret: "secret", Timeout: -time.Second},
			expectError: true,
			errorMsg:    "timeout must be >= 0 (got -1s)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(context.Background(), tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
				return
			}
			if client == nil {
				t.Error("Client is nil")
			}
		})
	}
}

func TestNew_LoadError(t *testing.T) {
	store := &memStore{loadErr: apperr.New(apperr.ErrIO, "load token file", errors.New("missing"))}

	_, err := New(context.Background(), DefaultConfig(store, "id", "secret"))
	if !errors.Is(err, apperr.ErrIO) {
		t.Errorf("New() error = %v, want io error", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	store := &memStore{token: &tokenstore.Token{AccessToken: "a"}}

	c, err := New(context.Background(), Config{Store: store, ClientID: "id", ClientSecret: "secret", BaseURL: "http://localhost:9/"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.config.BaseURL != "http://localhost:9" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", c.config.BaseURL)
	}
	if c.config.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", c.config.Timeout, DefaultTimeout)
	}
	if c.httpClient.Timeout != DefaultTimeout {
		t.Errorf("http client timeout = %v, want %v", c.httpClient.Timeout, DefaultTimeout)
	}
	if c.oauth.Endpoint.TokenURL != "http://localhost:9"+TokenPath {
		t.Errorf("TokenURL = %q", c.oauth.Endpoint.TokenURL)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorClass
	}{
		{401, ErrorClassAuth},
		{403, ErrorClassClient},
		{404, ErrorClassClient},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
		{200, ""},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.expected {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.expected)
		}
	}
}

func TestGet_Headers(t *testing.T) {
	mock := testutil.NewMockFreshBooks("access-1", "refresh-1")
	defer mock.Close()
	mock.SetPages("/ping", `{"ok": true}`)

	c, _ := newTestClient(t, mock, "access-1")

	body, err := c.Get(context.Background(), "/ping", nil)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(body) != `{"ok": true}` {
		t.Errorf("body = %s", body)
	}

	header := mock.LastRequestHeader()
	if got := header.Get("Authorization"); got != "Bearer access-1" {
		t.Errorf("Authorization = %q", got)
	}
	if got := header.Get("Api-Version"); got != APIVersion {
		t.Errorf("Api-Version = %q, want %q", got, APIVersion)
	}
	if mock.GetTokenRequests() != 0 {
		t.Errorf("token requests = %d, want 0", mock.GetTokenRequests())
	}
}

func TestGet_QueryParams(t *testing.T) {
	mock := testutil.NewMockFreshBooks("access-1", "refresh-1")
	defer mock.Close()
	mock.SetPages("/items", `{"page": 1}`, `{"page": 2}`)

	c, _ := newTestClient(t, mock, "access-1")

	body, err := c.Get(context.Background(), "/items", url.Values{"page": []string{"2"}})
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(body) != `{"page": 2}` {
		t.Errorf("body = %s, want page 2", body)
	}
	if pages := mock.RequestedPages("/items"); len(pages) != 1 || pages[0] != "2" {
		t.Errorf("requested pages = %v, want [2]", pages)
	}
}

func TestGet_RefreshOnUnauthorized(t *testing.T) {
	mock := testutil.NewMockFreshBooks("access-1", "refresh-1")
	defer mock.Close()
	mock.SetPages("/ping", `{"ok": true}`)

	c, store := newTestClient(t, mock, "stale-access")
	before := promtest.ToFloat64(tokenRefreshesTotal.WithLabelValues("success"))

	if _, err := c.Get(context.Background(), "/ping", nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if got := mock.GetTokenRequests(); got != 1 {
		t.Errorf("token requests = %d, want exactly 1", got)
	}
	if got := mock.GetRequestCount(); got != 2 {
		t.Errorf("API requests = %d, want 2 (first attempt + one retry)", got)
	}

	saved, saves := store.snapshot()
	if saves != 1 {
		t.Errorf("store saves = %d, want 1", saves)
	}
	if saved.AccessToken != mock.AccessToken() {
		t.Errorf("saved access token = %q, want %q", saved.AccessToken, mock.AccessToken())
	}
	if saved.RefreshToken != "refreshed-refresh-1" {
		t.Errorf("saved refresh token = %q", saved.RefreshToken)
	}
	if saved.Expiry.IsZero() {
		t.Error("saved expiry should be set from expires_in")
	}
	if c.Token().AccessToken != saved.AccessToken {
		t.Error("client should use the refreshed token")
	}

	form := mock.LastTokenForm()
	if form["client_id"] != "client-id" || form["client_secret"] != "client-secret" {
		t.Errorf("token form credentials = %v", form)
	}
	if form["refresh_token"] != "refresh-1" || form["grant_type"] != "refresh_token" {
		t.Errorf("token form grant = %v", form)
	}

	if after := promtest.ToFloat64(tokenRefreshesTotal.WithLabelValues("success")); after != before+1 {
		t.Errorf("refresh success counter = %v, want %v", after, before+1)
	}
}

func TestGet_RefreshRejected(t *testing.T) {
	mock := testutil.NewMockFreshBooks("access-1", "refresh-1")
	defer mock.Close()
	mock.SetPages("/ping", `{"ok": true}`)
	mock.RejectRefresh(true)

	c, store := newTestClient(t, mock, "stale-access")

	_, err := c.Get(context.Background(), "/ping", nil)
	if !errors.Is(err, apperr.ErrAuth) {
		t.Fatalf("Get() error = %v, want auth error", err)
	}
	if got := mock.GetTokenRequests(); got != 1 {
		t.Errorf("token requests = %d, want 1", got)
	}
	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("API requests = %d, want 1 (no retry after rejected refresh)", got)
	}
	if _, saves := store.snapshot(); saves != 0 {
		t.Errorf("store saves = %d, want 0", saves)
	}
}

func TestGet_RefreshServerError(t *testing.T) {
	mock := testutil.NewMockFreshBooks("access-1", "refresh-1")
	defer mock.Close()
	mock.SetPages("/ping", `{"ok": true}`)
	mock.FailRefresh(http.StatusServiceUnavailable)

	c, store := newTestClient(t, mock, "stale-access")
	before := promtest.ToFloat64(tokenRefreshesTotal.WithLabelValues("error"))

	_, err := c.Get(context.Background(), "/ping", nil)
	if err == nil {
		t.Fatal("Get() should fail when the token endpoint is unavailable")
	}
	if errors.Is(err, apperr.ErrAuth) {
		t.Errorf("Get() error = %v, a 503 from the token endpoint is not an auth rejection", err)
	}
	if got := mock.GetTokenRequests(); got != 1 {
		t.Errorf("token requests = %d, want 1", got)
	}
	if _, saves := store.snapshot(); saves != 0 {
		t.Errorf("store saves = %d, want 0", saves)
	}
	if after := promtest.ToFloat64(tokenRefreshesTotal.WithLabelValues("error")); after != before+1 {
		t.Errorf("error refreshes = %v, want %v", after, before+1)
	}
}

func TestGet_SecondRejectionDoesNotLoop(t *testing.T) {
	mock := testutil.NewMockFreshBooks("access-1", "refresh-1")
	defer mock.Close()
	mock.SetPages("/ping", `{"ok": true}`)
	mock.RevokeAccessToken()

	c, _ := newTestClient(t, mock, "access-1")

	_, err := c.Get(context.Background(), "/ping", nil)
	if !errors.Is(err, apperr.ErrAuth) {
		t.Fatalf("Get() error = %v, want auth error", err)
	}
	if got := mock.GetTokenRequests(); got != 1 {
		t.Errorf("token requests = %d, want exactly 1", got)
	}
	if got := mock.GetRequestCount(); got != 2 {
		t.Errorf("API requests = %d, want 2", got)
	}
}

func TestGet_ExpiredTokenRefreshesFirst(t *testing.T) {
	mock := testutil.NewMockFreshBooks("never-accepted", "refresh-1")
	defer mock.Close()
	mock.SetPages("/ping", `{"ok": true}`)

	c, _ := newTestClient(t, mock, "expired-access")
	c.SetClock(func() time.Time { return time.Now().Add(2 * time.Hour) })

	if _, err := c.Get(context.Background(), "/ping", nil); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got := mock.GetTokenRequests(); got != 1 {
		t.Errorf("token requests = %d, want 1", got)
	}
	if got := mock.GetRequestCount(); got != 1 {
		t.Errorf("API requests = %d, want 1", got)
	}
}

func TestGet_MissingRefreshToken(t *testing.T) {
	mock := testutil.NewMockFreshBooks("access-1", "refresh-1")
	defer mock.Close()

	store := &memStore{token: &tokenstore.Token{AccessToken: "stale"}}
	cfg := DefaultConfig(store, "id", "secret")
	cfg.BaseURL = mock.URL()
	c, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.Get(context.Background(), "/ping", nil)
	if !errors.Is(err, apperr.ErrAuth) {
		t.Errorf("Get() error = %v, want auth error", err)
	}
	if mock.GetTokenRequests() != 0 {
		t.Error("token endpoint should not be called without a refresh token")
	}
}

func TestGet_ErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name   string
		status int
		class  ErrorClass
	}{
		{"not found", http.StatusNotFound, ErrorClassClient},
		{"server error", http.StatusInternalServerError, ErrorClassServer},
		{"unavailable", http.StatusServiceUnavailable, ErrorClassServer},
		{"rate limited", http.StatusTooManyRequests, ErrorClassClient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockFreshBooks("access-1", "refresh-1")
			defer mock.Close()
			mock.SetHandler("/fail", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":"nope"}`))
			})

			c, _ := newTestClient(t, mock, "access-1")

			_, err := c.Get(context.Background(), "/fail", nil)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("Get() error = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if apiErr.ErrorClass != tt.class {
				t.Errorf("ErrorClass = %q, want %q", apiErr.ErrorClass, tt.class)
			}
			if mock.GetRequestCount() != 1 {
				t.Errorf("API requests = %d, want 1", mock.GetRequestCount())
			}
		})
	}
}

func TestGet_NetworkError(t *testing.T) {
	mock := testutil.NewMockFreshBooks("access-1", "refresh-1")
	c, _ := newTestClient(t, mock, "access-1")
	mock.Close()

	_, err := c.Get(context.Background(), "/ping", nil)
	if err == nil {
		t.Fatal("Expected network error")
	}
	if apperr.KindOf(err) != nil {
		t.Errorf("network error should carry no kind, got %v", apperr.KindOf(err))
	}
}

func TestGet_ContextCancelled(t *testing.T) {
	mock := testutil.NewMockFreshBooks("access-1", "refresh-1")
	defer mock.Close()
	mock.SetPages("/ping", `{}`)

	c, _ := newTestClient(t, mock, "access-1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Get(ctx, "/ping", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Get() error = %v, want context.Canceled", err)
	}
}
