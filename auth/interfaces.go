package auth

import (
	"context"
	"time"

	"github.com/squads-cli/squads-cli/store"
)

// TokenStorer defines the contract for any component that can persist the
// token store file.
type TokenStorer interface {
	Load() (*store.File, error)
	Save(*store.File) error
	Clear() error
}

// TokenProvider defines the contract with the identity provider's OAuth
// endpoints. The concrete implementation lives in the client package; tests
// inject fakes.
type TokenProvider interface {
	// RequestDeviceCode starts a device authorization and returns the session
	// the user completes in a browser.
	RequestDeviceCode(ctx context.Context, tenant string) (*DeviceSession, error)
	// RedeemDeviceCode exchanges an approved device code for the initial
	// refresh token. While the user has not acted yet it fails with a
	// ProviderError carrying "authorization_pending".
	RedeemDeviceCode(ctx context.Context, tenant, deviceCode string) (store.Record, error)
	// RenewRefreshToken exchanges a refresh token for a fresh one.
	RenewRefreshToken(ctx context.Context, tenant, refreshToken string) (store.Record, error)
	// MintScopedToken exchanges the refresh token for an access token bound to
	// a single scope.
	MintScopedToken(ctx context.Context, tenant, refreshToken string, scope store.Scope) (store.Record, error)
}

// DeviceSession is the ephemeral state of one device authorization attempt.
// Nothing about it is persisted; it dies with the login command.
type DeviceSession struct {
	Tenant          string
	DeviceCode      string
	UserCode        string
	VerificationURL string
	Message         string
	Interval        time.Duration
	ExpiresAt       time.Time
}
