package client

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

	"github.com/rs/zerolog/log"

	"github.com/squads-cli/squads-cli/auth"
	"github.com/squads-cli/squads-cli/store"
)

const (
	// clientID is the well-known public client identifier the official Teams
	// web client authenticates with. Device logins are made on its behalf.
	clientID = "1fec8e78-bce4-4aaf-ab1b-5451cc387264"

	// deviceCodeResource is the audience requested when initiating the device
	// flow; the refresh token it yields can mint tokens for every scope.
	deviceCodeResource = "https://api.spaces.skype.com"

	deviceGrantType = "urn:ietf:params:oauth:grant-type:device_code"
	baseScopes      = "openid profile offline_access"

	defaultLoginBase = "https://login.microsoftonline.com"
	userAgent        = "Mozilla/5.0 (X11; Linux x86_64; rv:131.0) Gecko/20100101 Firefox/131.0"
	originHeader     = "https://teams.microsoft.com"

	maxAttempts    = 3
	initialBackoff = 500 * time.Millisecond
)

// Provider talks to the identity provider's OAuth endpoints. It implements
// auth.TokenProvider. Transient transport failures and 5xx responses are
// retried a bounded number of times with backoff; definitive OAuth error
// responses are returned as *auth.ProviderError without retrying.
type Provider struct {
	http *http.Client
	base string
	now  func() time.Time
}

// NewProvider creates a provider client with the given per-request timeout.
func NewProvider(timeout time.Duration) *Provider {
	return NewProviderWithBase(defaultLoginBase, timeout)
}

// NewProviderWithBase creates a provider client against a custom login
// endpoint base URL. Used by tests.
func NewProviderWithBase(base string, timeout time.Duration) *Provider {
	return &Provider{
		http: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		base: strings.TrimRight(base, "/"),
		now:  time.Now,
	}
}

// deviceCodeResponse mirrors the v1 device-code endpoint's payload. The
// endpoint returns verification_url (not verification_uri) and encodes the
// numeric fields as JSON strings.
type deviceCodeResponse struct {
	UserCode        string      `json:"user_code"`
	DeviceCode      string      `json:"device_code"`
	VerificationURL string      `json:"verification_url"`
	ExpiresIn       flexSeconds `json:"expires_in"`
	Interval        flexSeconds `json:"interval"`
	Message         string      `json:"message"`
}

// tokenResponse mirrors the token endpoint's payload for every grant type.
type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    flexSeconds `json:"expires_in"`
}

// flexSeconds decodes a duration-in-seconds field that the provider sends
// either as a JSON number or as a numeric string depending on the endpoint.
type flexSeconds int64

func (s *flexSeconds) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid seconds value %q: %w", raw, err)
	}
	*s = flexSeconds(n)
	return nil
}

// RequestDeviceCode initiates the device authorization flow for a tenant.
func (p *Provider) RequestDeviceCode(ctx context.Context, tenant string) (*auth.DeviceSession, error) {
	endpoint := fmt.Sprintf("%s/%s/oauth2/devicecode", p.base, url.PathEscape(tenant))
	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("resource", deviceCodeResource)

	body, err := p.postForm(ctx, endpoint, form)
	if err != nil {
		return nil, err
	}

	var resp deviceCodeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse device code response: %w", err)
	}
	if resp.DeviceCode == "" {
		return nil, fmt.Errorf("device code response is missing device_code")
	}

	session := &auth.DeviceSession{
		Tenant:          tenant,
		DeviceCode:      resp.DeviceCode,
		UserCode:        resp.UserCode,
		VerificationURL: resp.VerificationURL,
		Message:         resp.Message,
		Interval:        time.Duration(resp.Interval) * time.Second,
	}
	if resp.ExpiresIn > 0 {
		session.ExpiresAt = p.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return session, nil
}

// RedeemDeviceCode exchanges an approved device code for the initial refresh
// token via the v1 token endpoint.
func (p *Provider) RedeemDeviceCode(ctx context.Context, tenant, deviceCode string) (store.Record, error) {
	endpoint := fmt.Sprintf("%s/%s/oauth2/token", p.base, url.PathEscape(tenant))
	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("code", deviceCode)
	form.Set("grant_type", deviceGrantType)

	body, err := p.postForm(ctx, endpoint, form)
	if err != nil {
		return store.Record{}, err
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return store.Record{}, fmt.Errorf("failed to parse device code token response: %w", err)
	}
	if resp.RefreshToken == "" {
		return store.Record{}, fmt.Errorf("token response is missing refresh_token")
	}
	return store.Record{
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    p.expiry(resp.ExpiresIn),
	}, nil
}

// RenewRefreshToken exchanges the refresh token for a fresh one via the v2
// token endpoint.
func (p *Provider) RenewRefreshToken(ctx context.Context, tenant, refreshToken string) (store.Record, error) {
	form := p.refreshGrantForm(refreshToken)
	form.Set("scope", baseScopes)

	body, err := p.postForm(ctx, p.v2TokenEndpoint(tenant), form)
	if err != nil {
		return store.Record{}, err
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return store.Record{}, fmt.Errorf("failed to parse refresh token response: %w", err)
	}
	if resp.RefreshToken == "" {
		return store.Record{}, fmt.Errorf("refresh response is missing refresh_token")
	}
	return store.Record{
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    p.expiry(resp.ExpiresIn),
	}, nil
}

// MintScopedToken exchanges the refresh token for an access token bound to a
// single scope.
func (p *Provider) MintScopedToken(ctx context.Context, tenant, refreshToken string, scope store.Scope) (store.Record, error) {
	form := p.refreshGrantForm(refreshToken)
	form.Set("scope", fmt.Sprintf("%s %s", scope, baseScopes))
	form.Set("claims", `{"access_token":{"xms_cc":{"values":["CP1"]}}}`)

	body, err := p.postForm(ctx, p.v2TokenEndpoint(tenant), form)
	if err != nil {
		return store.Record{}, err
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return store.Record{}, fmt.Errorf("failed to parse scoped token response: %w", err)
	}
	if resp.AccessToken == "" {
		return store.Record{}, fmt.Errorf("token response for scope %s is missing access_token", scope.ShortName())
	}
	return store.Record{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    p.expiry(resp.ExpiresIn),
		Scope:        scope,
	}, nil
}

func (p *Provider) v2TokenEndpoint(tenant string) string {
	return fmt.Sprintf("%s/%s/oauth2/v2.0/token", p.base, url.PathEscape(tenant))
}

func (p *Provider) refreshGrantForm(refreshToken string) url.Values {
	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_info", "1")
	form.Set("x-client-SKU", "msal.js.browser")
	form.Set("x-client-VER", "3.7.1")
	return form
}

func (p *Provider) expiry(seconds flexSeconds) time.Time {
	if seconds <= 0 {
		seconds = 3600
	}
	return p.now().Add(time.Duration(seconds) * time.Second)
}

// postForm sends a form-encoded POST, retrying transport failures and 5xx
// responses with exponential backoff. Non-2xx responses that carry an OAuth
// error body are returned as *auth.ProviderError and never retried.
func (p *Provider) postForm(ctx context.Context, endpoint string, form url.Values) ([]byte, error) {
	encoded := form.Encode()
	backoff := initialBackoff
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			log.Debug().Str("url", endpoint).Int("attempt", attempt).Msg("Retrying provider request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(encoded))
		if err != nil {
			return nil, fmt.Errorf("failed to create provider request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Origin", originHeader)

		resp, err := p.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			log.Warn().Err(err).Str("url", endpoint).Int("attempt", attempt).Msg("Provider request failed")
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("provider returned HTTP %d", resp.StatusCode)
			log.Warn().Int("status", resp.StatusCode).Str("url", endpoint).Int("attempt", attempt).Msg("Provider server error")
			continue
		}

		return nil, parseOAuthError(resp.StatusCode, body)
	}

	return nil, fmt.Errorf("provider request to %s failed after %d attempts: %w", endpoint, maxAttempts, lastErr)
}

// parseOAuthError turns a non-retryable error response into a typed
// ProviderError so callers can classify it.
func parseOAuthError(status int, body []byte) error {
	var payload struct {
		Error       string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return &auth.ProviderError{Code: payload.Error, Description: payload.Description, Status: status}
	}
	return &auth.ProviderError{Code: "invalid_response", Description: string(body), Status: status}
}
