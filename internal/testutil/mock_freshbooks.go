// Package testutil provides testing utilities for the FreshBooks client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
)

// TokenPath is the token endpoint served by the mock.
const TokenPath = "/auth/oauth/token"

// MockFreshBooks is a configurable mock FreshBooks API for testing.
//
// API paths require "Authorization: Bearer <AccessToken>" and answer 401
// otherwise. The token endpoint issues a new access token on each refresh
// grant and switches the accepted token over to it.
type MockFreshBooks struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	pages    map[string][]string

	accessToken   string
	refreshToken  string
	rejectRefresh bool
	refreshStatus int
	revoked       bool
	refreshes     int

	// Tracking
	requestCount      int
	tokenRequests     int
	lastRequestHeader http.Header
	lastTokenForm     map[string]string
	requestedPages    map[string][]string
}

// NewMockFreshBooks creates a mock that accepts accessToken.
func NewMockFreshBooks(accessToken, refreshToken string) *MockFreshBooks {
	mock := &MockFreshBooks{
		handlers:       make(map[string]http.HandlerFunc),
		pages:          make(map[string][]string),
		accessToken:    accessToken,
		refreshToken:   refreshToken,
		requestedPages: make(map[string][]string),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))
	return mock
}

func (m *MockFreshBooks) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == TokenPath {
		m.tokenHandler(w, r)
		return
	}

	m.mu.Lock()
	m.requestCount++
	m.lastRequestHeader = r.Header.Clone()
	authorized := !m.revoked && r.Header.Get("Authorization") == "Bearer "+m.accessToken
	if authorized {
		m.requestedPages[r.URL.Path] = append(m.requestedPages[r.URL.Path], r.URL.Query().Get("page"))
	}
	handler, hasHandler := m.handlers[r.URL.Path]
	pages, hasPages := m.pages[r.URL.Path]
	m.mu.Unlock()

	if !authorized {
		writeJSON(w, http.StatusUnauthorized, `{"error":"unauthenticated","error_description":"The server could not verify that you are authorized to access the URL requested."}`)
		return
	}

	switch {
	case hasHandler:
		handler(w, r)
	case hasPages:
		page := 1
		if raw := r.URL.Query().Get("page"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > len(pages) {
				writeJSON(w, http.StatusNotFound, `{"error":"page out of range"}`)
				return
			}
			page = n
		}
		writeJSON(w, http.StatusOK, pages[page-1])
	default:
		writeJSON(w, http.StatusNotFound, `{"error":"not found"}`)
	}
}

// tokenHandler implements the refresh_token grant.
func (m *MockFreshBooks) tokenHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, `{"error":"invalid_request"}`)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokenRequests++
	m.lastTokenForm = map[string]string{}
	for key := range r.PostForm {
		m.lastTokenForm[key] = r.PostForm.Get(key)
	}

	if m.refreshStatus != 0 {
		writeJSON(w, m.refreshStatus, `{"error":"temporarily_unavailable"}`)
		return
	}
	if m.rejectRefresh || r.PostForm.Get("grant_type") != "refresh_token" ||
		r.PostForm.Get("refresh_token") != m.refreshToken {
		writeJSON(w, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"The provided authorization grant is invalid."}`)
		return
	}

	m.refreshes++
	m.accessToken = fmt.Sprintf("refreshed-access-%d", m.refreshes)
	m.refreshToken = fmt.Sprintf("refreshed-refresh-%d", m.refreshes)

	body, _ := json.Marshal(map[string]any{
		"access_token":  m.accessToken,
		"refresh_token": m.refreshToken,
		"token_type":    "Bearer",
		"expires_in":    43200,
		"scope":         "user:invoices:read user:payments:read",
	})
	writeJSON(w, http.StatusOK, string(body))
}

// URL returns the mock server URL.
func (m *MockFreshBooks) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockFreshBooks) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockFreshBooks) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.tokenRequests = 0
	m.lastRequestHeader = nil
	m.lastTokenForm = nil
	m.requestedPages = make(map[string][]string)
}

// SetHandler sets a custom handler for a specific path. Authorization is
// still checked before the handler runs.
func (m *MockFreshBooks) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetPages serves bodies[i] for page i+1 of path. A request without a page
// parameter gets the first body.
func (m *MockFreshBooks) SetPages(path string, bodies ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[path] = bodies
}

// SetAccessToken changes the token the API paths accept.
func (m *MockFreshBooks) SetAccessToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessToken = token
}

// RevokeAccessToken makes every API request answer 401, refreshed or not.
func (m *MockFreshBooks) RevokeAccessToken() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked = true
}

// FailRefresh makes the token endpoint answer with status. Zero restores
// normal behavior.
func (m *MockFreshBooks) FailRefresh(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshStatus = status
}

// RejectRefresh makes the token endpoint answer invalid_grant.
func (m *MockFreshBooks) RejectRefresh(reject bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejectRefresh = reject
}

// AccessToken returns the token currently accepted by the API paths.
func (m *MockFreshBooks) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.accessToken
}

// GetRequestCount returns the number of API requests (token endpoint excluded).
func (m *MockFreshBooks) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// GetTokenRequests returns the number of calls to the token endpoint.
func (m *MockFreshBooks) GetTokenRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tokenRequests
}

// LastRequestHeader returns the headers of the most recent API request.
func (m *MockFreshBooks) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// LastTokenForm returns the form values of the most recent token request.
func (m *MockFreshBooks) LastTokenForm() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastTokenForm
}

// RequestedPages returns the page parameter of each authorized request to
// path, in order. The implicit first page is recorded as "".
func (m *MockFreshBooks) RequestedPages(path string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.requestedPages[path]...)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

// AccountingPage renders an accounting-style envelope:
// {"response": {"result": {"page", "pages", "per_page", "total", focus: items}}}.
func AccountingPage(focus string, page, pages int, items []map[string]any) string {
	list := toList(items)
	body, err := json.Marshal(map[string]any{
		"response": map[string]any{
			"result": map[string]any{
				"page":     page,
				"pages":    pages,
				"per_page": 15,
				"total":    len(list),
				focus:      list,
			},
		},
	})
	if err != nil {
		panic(err)
	}
	return string(body)
}

// ProjectsPage renders a projects-style envelope: {"meta": {...}, focus: items}.
func ProjectsPage(focus string, page, pages int, items []map[string]any) string {
	list := toList(items)
	body, err := json.Marshal(map[string]any{
		"meta": map[string]any{
			"page":     page,
			"pages":    pages,
			"per_page": 15,
			"total":    len(list),
		},
		focus: list,
	})
	if err != nil {
		panic(err)
	}
	return string(body)
}

func toList(items []map[string]any) []map[string]any {
	if items == nil {
		return []map[string]any{}
	}
	return items
}

// AccountingPath returns the accounting collection path for an account.
func AccountingPath(accountID, resource string) string {
	return fmt.Sprintf("/accounting/account/%s/%s/%s", accountID, resource, resource)
}

// ProjectsPath returns the projects collection path for a business.
func ProjectsPath(businessID string) string {
	return fmt.Sprintf("/projects/business/%s/projects", businessID)
}
