package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/squads-cli/squads-cli/store"
)

const (
	defaultPollInterval = 5 * time.Second
	maxPollInterval     = 30 * time.Second
)

// Flow drives the interactive device authorization against the identity
// provider: request a device code, let the user approve it in a browser, and
// poll the token endpoint until a refresh token is issued.
type Flow struct {
	provider TokenProvider
	now      func() time.Time
}

// NewFlow is the constructor for the device authorization flow.
func NewFlow(provider TokenProvider) *Flow {
	return &Flow{provider: provider, now: time.Now}
}

// Initiate requests a device code for the tenant. The caller is responsible
// for showing the session's user code and verification URL to the user.
func (f *Flow) Initiate(ctx context.Context, tenant string) (*DeviceSession, error) {
	session, err := f.provider.RequestDeviceCode(ctx, tenant)
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) {
			return nil, fmt.Errorf("%w: %v", ErrProviderRejected, err)
		}
		return nil, fmt.Errorf("failed to start device authorization: %w", err)
	}
	if session.Interval <= 0 {
		session.Interval = defaultPollInterval
	}
	session.Tenant = tenant
	log.Info().Str("tenant", tenant).Str("user_code", session.UserCode).Msg("Device authorization started")
	return session, nil
}

// Poll queries the token endpoint until the user approves the device code,
// the session expires, or the context is cancelled. Nothing is persisted
// here; the returned record is the seed refresh token the broker stores.
func (f *Flow) Poll(ctx context.Context, session *DeviceSession) (store.Record, error) {
	interval := session.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	for attempt := 1; ; attempt++ {
		if !session.ExpiresAt.IsZero() && f.now().After(session.ExpiresAt) {
			return store.Record{}, ErrFlowExpired
		}

		rec, err := f.provider.RedeemDeviceCode(ctx, session.Tenant, session.DeviceCode)
		if err == nil {
			log.Info().Int("attempts", attempt).Msg("Device authorization approved")
			return rec, nil
		}

		var pe *ProviderError
		if !errors.As(err, &pe) {
			return store.Record{}, fmt.Errorf("device code polling failed: %w", err)
		}

		switch pe.Code {
		case "authorization_pending":
			log.Debug().Int("attempt", attempt).Dur("interval", interval).Msg("Authorization still pending")
		case "slow_down":
			interval = time.Duration(float64(interval) * 1.5)
			if interval > maxPollInterval {
				interval = maxPollInterval
			}
			log.Debug().Dur("interval", interval).Msg("Provider asked to slow down polling")
		case "authorization_declined", "access_denied":
			return store.Record{}, fmt.Errorf("%w: %v", ErrFlowDenied, err)
		case "expired_token", "code_expired", "bad_verification_code":
			return store.Record{}, fmt.Errorf("%w: %v", ErrFlowExpired, err)
		default:
			return store.Record{}, fmt.Errorf("%w: %v", ErrProviderRejected, err)
		}

		select {
		case <-ctx.Done():
			return store.Record{}, ctx.Err()
		case <-time.After(interval):
		}
	}
}
