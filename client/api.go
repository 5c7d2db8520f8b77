package client

import (
	"context"

	"github.com/squads-cli/squads-cli/store"
)

// Profile is the signed-in user's directory entry, fetched from the graph
// backend. The status command uses it to show who is logged in.
type Profile struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// Me fetches the profile of the authenticated user.
func (f *Facade) Me(ctx context.Context) (*Profile, error) {
	var profile Profile
	url := f.ServiceBaseURL(store.ScopeGraph) + "/me"
	if err := f.GetJSON(ctx, store.ScopeGraph, url, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}
