package cmd

import (
	"context"
	"errors"

	"github.com/squads-cli/squads-cli/auth"
	"github.com/squads-cli/squads-cli/pkg/clierr"
	"github.com/squads-cli/squads-cli/store"
)

// classify maps token-core errors to user-facing CLI errors. The core
// surfaces its taxonomy unmodified; this is the single place where it becomes
// wording and (potential) exit codes.
func classify(err error) *clierr.Error {
	switch {
	case errors.Is(err, auth.ErrReauthRequired):
		return clierr.New(clierr.AuthRequired, "Not authenticated. Run 'squads auth login' first.", err)
	case errors.Is(err, store.ErrCorrupt):
		return clierr.New(clierr.CorruptStore, "The token store is corrupted. Run 'squads auth logout' to reset it.", err)
	case errors.Is(err, auth.ErrFlowDenied):
		return clierr.New(clierr.FlowDenied, "Sign-in was declined. Run 'squads auth login' to try again.", err)
	case errors.Is(err, auth.ErrFlowExpired):
		return clierr.New(clierr.FlowExpired, "The sign-in request expired before it was approved. Run 'squads auth login' to try again.", err)
	case errors.Is(err, auth.ErrProviderRejected):
		return clierr.New(clierr.ProviderRejected, "The identity provider rejected the request. Check the tenant in your configuration.", err)
	case errors.Is(err, context.Canceled):
		return clierr.New(clierr.Internal, "Cancelled.", err)
	case errors.Is(err, context.DeadlineExceeded):
		return clierr.New(clierr.Network, "The request timed out. Check your network connection and try again.", err)
	default:
		return clierr.New(clierr.Network, "Request failed: "+err.Error(), err)
	}
}
