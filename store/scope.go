package store

import "fmt"

// Scope identifies one of the backend audiences the CLI authenticates to.
// Access tokens are minted per scope and must never cross audiences.
type Scope string

const (
	// ScopeChatSvc covers the chat service (message send/receive).
	ScopeChatSvc Scope = "https://api.spaces.skype.com/Authorization.ReadWrite"
	// ScopeChatSvcAgg covers the chat aggregation service (team and chat listings).
	ScopeChatSvcAgg Scope = "https://chatsvcagg.teams.microsoft.com/.default"
	// ScopeGraph covers the generic graph API (profiles, mail, calendar).
	ScopeGraph Scope = "https://graph.microsoft.com/.default"
	// ScopeRealtime covers the IC3 real-time messaging service.
	ScopeRealtime Scope = "https://ic3.teams.office.com/.default"
)

// AllScopes lists every scope the CLI knows about, in display order.
var AllScopes = []Scope{ScopeChatSvc, ScopeChatSvcAgg, ScopeGraph, ScopeRealtime}

// scopeNames maps the short names accepted on the command line to scopes.
var scopeNames = map[string]Scope{
	"chat":     ScopeChatSvc,
	"chatsvc":  ScopeChatSvc,
	"agg":      ScopeChatSvcAgg,
	"graph":    ScopeGraph,
	"realtime": ScopeRealtime,
	"ic3":      ScopeRealtime,
}

// ParseScope resolves a short scope name (e.g. "graph") to a Scope.
func ParseScope(name string) (Scope, error) {
	if s, ok := scopeNames[name]; ok {
		return s, nil
	}
	return "", fmt.Errorf("unknown scope %q (expected one of: chat, agg, graph, realtime)", name)
}

// ShortName returns the canonical short name for a scope, for display.
func (s Scope) ShortName() string {
	switch s {
	case ScopeChatSvc:
		return "chat"
	case ScopeChatSvcAgg:
		return "agg"
	case ScopeGraph:
		return "graph"
	case ScopeRealtime:
		return "realtime"
	default:
		return string(s)
	}
}
