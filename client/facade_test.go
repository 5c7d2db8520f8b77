package client_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squads-cli/squads-cli/client"
	"github.com/squads-cli/squads-cli/store"
)

// fakeTokenSource plays the broker's role for facade tests.
type fakeTokenSource struct {
	token        string
	refreshed    string
	accessCalls  int
	refreshCalls int
	accessErr    error
	refreshErr   error
}

func (f *fakeTokenSource) AccessToken(ctx context.Context, scope store.Scope) (string, error) {
	f.accessCalls++
	if f.accessErr != nil {
		return "", f.accessErr
	}
	return f.token, nil
}

func (f *fakeTokenSource) RefreshAccessToken(ctx context.Context, scope store.Scope) (string, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	return f.refreshed, nil
}

func TestDo_AttachesBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer graph-token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	source := &fakeTokenSource{token: "graph-token"}
	facade := client.NewFacade(source, "emea", 5*time.Second)

	resp, err := facade.Do(context.Background(), store.ScopeGraph, http.MethodGet, server.URL, nil)

	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, source.accessCalls)
	assert.Zero(t, source.refreshCalls)
}

func TestDo_RetriesOnceAfterUnauthorized(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("Authorization") == "Bearer fresh-token" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	source := &fakeTokenSource{token: "stale-token", refreshed: "fresh-token"}
	facade := client.NewFacade(source, "emea", 5*time.Second)

	resp, err := facade.Do(context.Background(), store.ScopeGraph, http.MethodGet, server.URL, nil)

	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, requests)
	assert.Equal(t, 1, source.refreshCalls, "a rejected bearer token forces exactly one renewal")
}

func TestDo_GivesUpAfterSecondUnauthorized(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	source := &fakeTokenSource{token: "stale-token", refreshed: "still-bad-token"}
	facade := client.NewFacade(source, "emea", 5*time.Second)

	resp, err := facade.Do(context.Background(), store.ScopeGraph, http.MethodGet, server.URL, nil)

	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 2, requests, "only one forced-renewal retry is allowed")
	assert.Equal(t, 1, source.refreshCalls)
}

func TestDo_PropagatesTokenSourceErrors(t *testing.T) {
	source := &fakeTokenSource{accessErr: fmt.Errorf("no token for you")}
	facade := client.NewFacade(source, "emea", 5*time.Second)

	_, err := facade.Do(context.Background(), store.ScopeGraph, http.MethodGet, "http://unused.invalid", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no token for you")
}

func TestDo_ReplaysBodyOnRetry(t *testing.T) {
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))
		if r.Header.Get("Authorization") == "Bearer fresh-token" {
			w.WriteHeader(http.StatusCreated)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	source := &fakeTokenSource{token: "stale-token", refreshed: "fresh-token"}
	facade := client.NewFacade(source, "emea", 5*time.Second)

	resp, err := facade.Do(context.Background(), store.ScopeChatSvc, http.MethodPost, server.URL, []byte(`{"content":"hi"}`))

	require.NoError(t, err)
	defer resp.Body.Close()
	require.Len(t, bodies, 2)
	assert.Equal(t, bodies[0], bodies[1], "the request body must be replayed intact on the retry")
}

func TestGetJSON_DecodesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"displayName":"Ada Lovelace","mail":"ada@example.com"}`)
	}))
	defer server.Close()

	source := &fakeTokenSource{token: "graph-token"}
	facade := client.NewFacade(source, "emea", 5*time.Second)

	var out struct {
		DisplayName string `json:"displayName"`
		Mail        string `json:"mail"`
	}
	err := facade.GetJSON(context.Background(), store.ScopeGraph, server.URL, &out)

	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", out.DisplayName)
	assert.Equal(t, "ada@example.com", out.Mail)
}

func TestGetJSON_ReportsNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":"Forbidden"}}`)
	}))
	defer server.Close()

	source := &fakeTokenSource{token: "graph-token"}
	facade := client.NewFacade(source, "emea", 5*time.Second)

	var out map[string]any
	err := facade.GetJSON(context.Background(), store.ScopeGraph, server.URL, &out)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestServiceBaseURL_IsRegionSharded(t *testing.T) {
	facade := client.NewFacade(&fakeTokenSource{}, "amer", 5*time.Second)

	assert.Equal(t, "https://graph.microsoft.com/v1.0", facade.ServiceBaseURL(store.ScopeGraph))
	assert.Contains(t, facade.ServiceBaseURL(store.ScopeChatSvcAgg), "/csa/amer/")
	assert.Contains(t, facade.ServiceBaseURL(store.ScopeRealtime), "/chatsvc/amer/")
	assert.NotEmpty(t, facade.ServiceBaseURL(store.ScopeChatSvc))
}
