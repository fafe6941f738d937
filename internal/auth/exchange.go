package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const maxProfileBytes int64 = 1 << 20

// TokenResult carries everything a successful code exchange yields.
type TokenResult struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	Scope        string
	TokenType    string
	ExpiresAt    int64
}

// ExchangeClient performs the outbound HTTP exchanges against a provider:
// authorization code for tokens, and token for the raw profile. Every
// transport, status, or decoding failure is wrapped into ErrUpstream so the
// boundary can distinguish provider faults from our own.
type ExchangeClient struct {
	httpClient *http.Client
}

// NewExchangeClient creates a client with a bounded per-call timeout. Calls
// are never retried; a failed exchange fails the whole login attempt.
func NewExchangeClient(timeout time.Duration) *ExchangeClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ExchangeClient{httpClient: &http.Client{Timeout: timeout}}
}

// ExchangeCode swaps an authorization code for provider tokens.
func (c *ExchangeClient) ExchangeCode(ctx context.Context, pc ProviderConfig, code, redirectURI string) (TokenResult, error) {
	conf := pc.OAuth
	conf.RedirectURL = redirectURI

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return TokenResult{}, fmt.Errorf("%w: token exchange: %v", ErrUpstream, err)
	}
	if token.AccessToken == "" {
		return TokenResult{}, fmt.Errorf("%w: token response missing access token", ErrUpstream)
	}

	result := TokenResult{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		result.IDToken = idToken
	}
	if scope, ok := token.Extra("scope").(string); ok {
		result.Scope = scope
	}
	if !token.Expiry.IsZero() {
		result.ExpiresAt = token.Expiry.Unix()
	}

	return result, nil
}

// FetchProfile retrieves the raw userinfo payload with a bearer header. It
// returns the parsed object plus the raw bytes for the account snapshot.
func (c *ExchangeClient) FetchProfile(ctx context.Context, pc ProviderConfig, accessToken string) (map[string]any, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pc.UserInfoURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: fetch profile: %v", ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read profile response: %v", ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, nil, fmt.Errorf("%w: userinfo returned status %d", ErrUpstream, resp.StatusCode)
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, nil, fmt.Errorf("%w: malformed profile response: %v", ErrUpstream, err)
	}

	return raw, body, nil
}
