package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Sternrassler/freshbooks-report/pkg/apperr"
	"github.com/Sternrassler/freshbooks-report/pkg/tokenstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/oauth2"
)

var tokenRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "freshbooks_token_refreshes_total",
	Help: "Total token refresh attempts by result",
}, []string{"result"})

// refresh exchanges the refresh token for a new access token and persists it.
func (c *Client) refresh(ctx context.Context) error {
	const op = "refresh token"

	current := c.currentToken()
	if current.RefreshToken == "" {
		tokenRefreshesTotal.WithLabelValues("rejected").Inc()
		return apperr.Errorf(apperr.ErrAuth, op, "no refresh token available")
	}

	// The token source sees an empty access token as invalid and goes
	// straight to the refresh grant.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	src := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: current.RefreshToken})

	tok, err := src.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && rejected(retrieveErr) {
			tokenRefreshesTotal.WithLabelValues("rejected").Inc()
			event := c.logger.Error().Str("error_code", retrieveErr.ErrorCode)
			if retrieveErr.Response != nil {
				event = event.Int("status", retrieveErr.Response.StatusCode)
			}
			event.Msg("Token refresh rejected")
			return apperr.New(apperr.ErrAuth, op, err)
		}
		tokenRefreshesTotal.WithLabelValues("error").Inc()
		c.logger.Error().Err(err).Msg("Token refresh failed")
		return fmt.Errorf("%s: %w", op, err)
	}

	next := tokenstore.FromOAuth2(tok, current)
	if err := c.store.Save(ctx, next); err != nil {
		tokenRefreshesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("persist refreshed token: %w", err)
	}

	c.mu.Lock()
	c.token = next
	c.mu.Unlock()

	tokenRefreshesTotal.WithLabelValues("success").Inc()
	c.logger.Info().
		Time("expiry", next.Expiry).
		Msg("Access token refreshed")

	return nil
}

// rejected reports whether the token endpoint refused the grant, as opposed
// to failing with a server error.
func rejected(err *oauth2.RetrieveError) bool {
	return err.Response == nil || err.Response.StatusCode < http.StatusInternalServerError
}
