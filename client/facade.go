package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/squads-cli/squads-cli/store"
)

// TokenSource hands out access tokens per scope. The auth.Broker satisfies
// this; tests inject fakes.
type TokenSource interface {
	AccessToken(ctx context.Context, scope store.Scope) (string, error)
	RefreshAccessToken(ctx context.Context, scope store.Scope) (string, error)
}

// Facade is the request layer every outbound API call goes through. It
// resolves the scope's bearer token before the request, and when a backend
// rejects the token anyway (expiry mid-session despite the safety margin), it
// forces one renewal and retries exactly once.
type Facade struct {
	tokens TokenSource
	http   *http.Client
	region string
}

// NewFacade builds the facade on top of a token source. The region selects
// the chat service deployment the requests are routed to.
func NewFacade(tokens TokenSource, region string, timeout time.Duration) *Facade {
	return &Facade{
		tokens: tokens,
		http:   &http.Client{Timeout: timeout},
		region: region,
	}
}

// ServiceBaseURL returns the base URL of the backend a scope's tokens are
// presented to. The chat services are region-sharded.
func (f *Facade) ServiceBaseURL(scope store.Scope) string {
	switch scope {
	case store.ScopeGraph:
		return "https://graph.microsoft.com/v1.0"
	case store.ScopeChatSvcAgg:
		return fmt.Sprintf("https://teams.microsoft.com/api/csa/%s/api/v2", f.region)
	case store.ScopeRealtime:
		return fmt.Sprintf("https://teams.microsoft.com/api/chatsvc/%s/v1", f.region)
	case store.ScopeChatSvc:
		return "https://teams.microsoft.com/api/authsvc/v1.0"
	default:
		return ""
	}
}

// Do sends one authenticated request. The body is taken as a byte slice so
// the request can be replayed after a forced token renewal.
func (f *Facade) Do(ctx context.Context, scope store.Scope, method, urlStr string, body []byte) (*http.Response, error) {
	token, err := f.tokens.AccessToken(ctx, scope)
	if err != nil {
		return nil, err
	}

	resp, err := f.send(ctx, method, urlStr, body, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// The backend rejected a token the store still considered valid. Force
	// one renewal and retry, then give up.
	resp.Body.Close()
	log.Debug().Str("scope", scope.ShortName()).Str("url", urlStr).Msg("Bearer token rejected, forcing renewal")
	token, err = f.tokens.RefreshAccessToken(ctx, scope)
	if err != nil {
		return nil, err
	}
	return f.send(ctx, method, urlStr, body, token)
}

// GetJSON issues an authenticated GET and decodes the JSON response into out.
func (f *Facade) GetJSON(ctx context.Context, scope store.Scope, urlStr string, out any) error {
	resp, err := f.Do(ctx, scope, http.MethodGet, urlStr, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected HTTP status %d from %s: %s", resp.StatusCode, urlStr, string(preview))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", urlStr, err)
	}
	return nil
}

func (f *Facade) send(ctx context.Context, method, urlStr string, body []byte, token string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", urlStr, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	log.Debug().Str("method", method).Str("url", urlStr).Msg("Sending API request")
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", urlStr, err)
	}
	return resp, nil
}
