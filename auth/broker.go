package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/squads-cli/squads-cli/store"
)

// safetyMargin is subtracted from a token's expiry when judging validity, so
// tokens are renewed proactively instead of being presented moments before
// they lapse.
const safetyMargin = 5 * time.Minute

// Broker hands out per-scope access tokens. It consults the persisted store
// first, mints a fresh token through the shared refresh token when the cached
// one is missing or stale, and persists the result before returning. It never
// starts an interactive login itself; when the refresh token is unusable it
// reports ErrReauthRequired and leaves the device flow to the caller.
type Broker struct {
	storer   TokenStorer
	provider TokenProvider
	tenant   string
	now      func() time.Time
}

// NewBroker is the constructor for the token broker. One broker is built per
// CLI invocation and passed to whichever command needs tokens.
func NewBroker(storer TokenStorer, provider TokenProvider, tenant string) *Broker {
	return &Broker{
		storer:   storer,
		provider: provider,
		tenant:   tenant,
		now:      time.Now,
	}
}

// AccessToken returns a currently valid access token for the scope. In steady
// state this is a pure cache lookup; a network round trip happens only when
// the cached record is absent or within the safety margin of expiry.
func (b *Broker) AccessToken(ctx context.Context, scope store.Scope) (string, error) {
	f, err := b.load()
	if err != nil {
		return "", err
	}

	if rec, ok := f.Get(scope); ok && rec.Valid(b.now(), safetyMargin) {
		log.Debug().Str("scope", scope.ShortName()).Time("expires_at", rec.ExpiresAt).Msg("Using cached access token")
		return rec.AccessToken, nil
	}

	return b.renew(ctx, f, scope)
}

// RefreshAccessToken mints a fresh token for the scope regardless of what is
// cached. The HTTP facade calls this once after a backend rejects a bearer
// token that the store still considered valid.
func (b *Broker) RefreshAccessToken(ctx context.Context, scope store.Scope) (string, error) {
	f, err := b.load()
	if err != nil {
		return "", err
	}
	return b.renew(ctx, f, scope)
}

// Seed replaces the persisted store with a fresh one holding the refresh
// token obtained by the device flow. Any previously cached scope tokens
// belong to the old identity and are dropped.
func (b *Broker) Seed(refresh store.Record) error {
	f := store.NewFile(b.tenant)
	f.Refresh = &refresh
	if err := b.storer.Save(f); err != nil {
		return fmt.Errorf("failed to persist refresh token: %w", err)
	}
	log.Info().Str("tenant", b.tenant).Msg("Refresh token stored")
	return nil
}

// Logout removes the persisted store entirely.
func (b *Broker) Logout() error {
	return b.storer.Clear()
}

// ScopeStatus summarizes one scope's cached token for the status command.
type ScopeStatus struct {
	Scope     store.Scope
	Cached    bool
	Valid     bool
	ExpiresAt time.Time
}

// Status describes the persisted authentication state.
type Status struct {
	Authenticated bool
	Tenant        string
	Scopes        []ScopeStatus
}

// Status reports whether a refresh token is stored and, per scope, whether a
// cached access token exists and is still within its validity window.
func (b *Broker) Status() (*Status, error) {
	f, err := b.storer.Load()
	if err != nil {
		return nil, err
	}

	st := &Status{
		Authenticated: f.Refresh != nil && f.Refresh.RefreshToken != "",
		Tenant:        f.Tenant,
	}
	now := b.now()
	for _, scope := range store.AllScopes {
		rec, ok := f.Get(scope)
		st.Scopes = append(st.Scopes, ScopeStatus{
			Scope:     scope,
			Cached:    ok,
			Valid:     ok && rec.Valid(now, safetyMargin),
			ExpiresAt: rec.ExpiresAt,
		})
	}
	return st, nil
}

// load reads the store and verifies a usable refresh token exists for the
// configured tenant.
func (b *Broker) load() (*store.File, error) {
	f, err := b.storer.Load()
	if err != nil {
		return nil, err
	}
	if f.Refresh == nil || f.Refresh.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token stored; run 'squads auth login'", ErrReauthRequired)
	}
	if f.Tenant != b.tenant {
		return nil, fmt.Errorf("%w: cached tokens were issued for tenant %q but tenant %q is configured",
			ErrReauthRequired, f.Tenant, b.tenant)
	}
	return f, nil
}

// renew mints a new access token for the scope and persists it. Only the
// entry for this scope (plus a rotated refresh token, when the provider sends
// one) is touched; other scopes' records are left as they are.
func (b *Broker) renew(ctx context.Context, f *store.File, scope store.Scope) (string, error) {
	refresh := *f.Refresh

	// The refresh token carries its own expiry; renew it first when stale so
	// the scoped grant below is made with a live credential.
	if !refresh.ExpiresAt.IsZero() && !b.now().Before(refresh.ExpiresAt) {
		log.Debug().Msg("Refresh token is past its expiry, renewing it first")
		renewed, err := b.provider.RenewRefreshToken(ctx, b.tenant, refresh.RefreshToken)
		if err != nil {
			return "", b.classifyRenewalError(err)
		}
		f.Refresh = &renewed
		refresh = renewed
		// The provider may invalidate the old token the moment it rotates;
		// persist now so a failed mint below cannot strand the store with the
		// dead one.
		if err := b.storer.Save(f); err != nil {
			return "", fmt.Errorf("failed to persist renewed refresh token: %w", err)
		}
	}

	rec, err := b.provider.MintScopedToken(ctx, b.tenant, refresh.RefreshToken, scope)
	if err != nil {
		return "", b.classifyRenewalError(err)
	}

	// Some providers rotate the refresh token on every grant.
	if rec.RefreshToken != "" && rec.RefreshToken != f.Refresh.RefreshToken {
		rotated := *f.Refresh
		rotated.RefreshToken = rec.RefreshToken
		f.Refresh = &rotated
	}
	rec.RefreshToken = ""

	f.Put(scope, rec)
	if err := b.storer.Save(f); err != nil {
		return "", fmt.Errorf("failed to persist renewed token for scope %s: %w", scope.ShortName(), err)
	}
	log.Info().Str("scope", scope.ShortName()).Time("expires_at", rec.ExpiresAt).Msg("Access token renewed")
	return rec.AccessToken, nil
}

// classifyRenewalError separates "the refresh token is dead, log in again"
// from transient failures, which must never masquerade as a login problem.
func (b *Broker) classifyRenewalError(err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.InvalidGrant() {
		return fmt.Errorf("%w: %v", ErrReauthRequired, err)
	}
	return fmt.Errorf("token renewal failed: %w", err)
}
