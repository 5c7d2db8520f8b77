package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrReauthRequired means the refresh token is missing, revoked, or was
	// issued for a different tenant. The only recovery is an interactive
	// device login; the broker reports the condition but never initiates it.
	ErrReauthRequired = errors.New("reauthentication required")

	// ErrProviderRejected means the identity provider definitively refused a
	// request (bad tenant or client). Retrying without fixing the
	// configuration will not help.
	ErrProviderRejected = errors.New("identity provider rejected the request")

	// ErrFlowDenied means the user declined the device authorization.
	ErrFlowDenied = errors.New("device login was declined")

	// ErrFlowExpired means the device code expired before the user approved
	// it; the login has to be restarted.
	ErrFlowExpired = errors.New("device login session expired")
)

// ProviderError is a structured OAuth error response from the identity
// provider's token or device-code endpoints.
type ProviderError struct {
	Code        string // OAuth error code, e.g. "authorization_pending"
	Description string
	Status      int // HTTP status of the response
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("provider error %q (HTTP %d): %s", e.Code, e.Status, e.Description)
	}
	return fmt.Sprintf("provider error %q (HTTP %d)", e.Code, e.Status)
}

// InvalidGrant reports whether the error means the presented refresh token or
// device code is no longer acceptable, as opposed to a transient failure.
func (e *ProviderError) InvalidGrant() bool {
	switch e.Code {
	case "invalid_grant", "interaction_required":
		return true
	}
	return false
}
