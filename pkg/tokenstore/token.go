// Package tokenstore persists the single OAuth2 credential used to talk to
// the FreshBooks API.
//
// The token is a small JSON document:
//
//	{"access_token": "...", "refresh_token": "...", "expiry": "2024-01-02T15:04:05Z",
//	 "token_type": "Bearer", "scope": "user:profile:read ..."}
//
// Two locations are supported: a file on disk (FileStore, the default) and a
// single Redis key (RedisStore). Both overwrite the whole document on Save.
package tokenstore

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/Sternrassler/freshbooks-report/pkg/apperr"
	"golang.org/x/oauth2"
)

// Store loads and saves the credential token.
type Store interface {
	Load(ctx context.Context) (*Token, error)
	Save(ctx context.Context, token *Token) error
}

// Token is the persisted OAuth2 credential.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
	TokenType    string    `json:"token_type"`
	Scope        string    `json:"scope"`
}

// UnmarshalJSON accepts the canonical document and also token files written
// by requests-oauthlib, which carry expires_at (unix seconds) instead of expiry.
func (t *Token) UnmarshalJSON(data []byte) error {
	type plain Token
	var raw struct {
		plain
		ExpiresAt *float64 `json:"expires_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Token(raw.plain)
	if t.Expiry.IsZero() && raw.ExpiresAt != nil {
		sec, frac := math.Modf(*raw.ExpiresAt)
		t.Expiry = time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}
	return nil
}

// Expired reports whether the access token has passed its expiry.
// A zero expiry never expires.
func (t *Token) Expired(now time.Time) bool {
	return !t.Expiry.IsZero() && !now.Before(t.Expiry)
}

// OAuth2 converts t to the representation used by golang.org/x/oauth2.
func (t *Token) OAuth2() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.Expiry,
	}
	return tok.WithExtra(map[string]any{"scope": t.Scope})
}

// FromOAuth2 converts a token returned by the token endpoint. Fields the
// server left out are carried over from prev.
func FromOAuth2(tok *oauth2.Token, prev *Token) *Token {
	out := &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		TokenType:    tok.TokenType,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		out.Scope = scope
	}
	if prev != nil {
		if out.RefreshToken == "" {
			out.RefreshToken = prev.RefreshToken
		}
		if out.Scope == "" {
			out.Scope = prev.Scope
		}
	}
	return out
}

// decode parses a stored token document.
func decode(op string, data []byte) (*Token, error) {
	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, apperr.New(apperr.ErrFormat, op, err)
	}
	if token.AccessToken == "" && token.RefreshToken == "" {
		return nil, apperr.Errorf(apperr.ErrFormat, op, "token has neither access_token nor refresh_token")
	}
	return &token, nil
}

// encode serializes a token for storage.
func encode(op string, token *Token) ([]byte, error) {
	if token == nil {
		return nil, apperr.Errorf(apperr.ErrFormat, op, "token cannot be nil")
	}
	data, err := json.Marshal(token)
	if err != nil {
		return nil, apperr.New(apperr.ErrFormat, op, err)
	}
	return data, nil
}
