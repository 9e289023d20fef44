package ultravox

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/config"
	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/domain"
	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/httpclient"
	apperrors "github.com/bdevz/ultravox-twilio-integration-sub000/pkg/errors"
)

func newTestUltravox(t *testing.T, baseURL string) *Client {
	t.Helper()
	policy := domain.RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffMultiplier: 2}
	transport, err := httpclient.New(providerName, policy, time.Second, nil, nil)
	if err != nil {
		t.Fatalf("transport: %v", err)
	}
	return NewClient(config.UltravoxConfig{BaseURL: baseURL, APIKey: "uv-key"}, transport)
}

func TestCreateAgentCall(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-API-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"joinUrl":"wss://host/j1"}`))
	}))
	defer srv.Close()

	c := newTestUltravox(t, srv.URL)
	joinURL, err := c.CreateAgentCall(context.Background(), "agent_123", map[string]any{"name": "John"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if joinURL != "wss://host/j1" {
		t.Fatalf("unexpected join url: %q", joinURL)
	}
	if gotPath != "/api/agents/agent_123/calls" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotKey != "uv-key" {
		t.Fatalf("expected API key header, got %q", gotKey)
	}

	medium, ok := gotBody["medium"].(map[string]any)
	if !ok {
		t.Fatalf("body missing medium: %v", gotBody)
	}
	if _, ok := medium["twilio"]; !ok {
		t.Fatalf("medium must request the telephony leg: %v", medium)
	}
	tplCtx, ok := gotBody["templateContext"].(map[string]any)
	if !ok || tplCtx["name"] != "John" {
		t.Fatalf("template context not forwarded: %v", gotBody)
	}
}

func TestCreateAgentCallOmitsEmptyContext(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"joinUrl":"wss://host/j2"}`))
	}))
	defer srv.Close()

	c := newTestUltravox(t, srv.URL)
	if _, err := c.CreateAgentCall(context.Background(), "agent_123", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, present := gotBody["templateContext"]; present {
		t.Fatalf("empty template context should be omitted: %v", gotBody)
	}
}

func TestCreateAgentCallUnknownAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestUltravox(t, srv.URL)
	_, err := c.CreateAgentCall(context.Background(), "missing", nil)
	ext, ok := apperrors.AsExternal(err)
	if !ok {
		t.Fatalf("expected provider-tagged error, got %v", err)
	}
	if ext.Provider != providerName || ext.Status != http.StatusNotFound {
		t.Fatalf("unexpected tagging: %+v", ext)
	}
	if kind, ok := httpclient.KindOf(err); !ok || kind != httpclient.KindClientError {
		t.Fatalf("transport kind should survive wrapping, got %v", err)
	}
}

func TestCreateAgentCallAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestUltravox(t, srv.URL)
	_, err := c.CreateAgentCall(context.Background(), "agent_123", nil)
	if kind, ok := httpclient.KindOf(err); !ok || kind != httpclient.KindAuthenticationFailure {
		t.Fatalf("expected authentication_failure, got %v", err)
	}
}

func TestCreateAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/agents" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		tpl, _ := body["callTemplate"].(map[string]any)
		if body["name"] != "support" || tpl["systemPrompt"] != "be nice" {
			t.Errorf("unexpected body: %v", body)
		}
		_, _ = w.Write([]byte(`{"agentId":"agent_9","name":"support","created":"2025-06-01T12:00:00Z","callTemplate":{"systemPrompt":"be nice","voice":"Mark"}}`))
	}))
	defer srv.Close()

	c := newTestUltravox(t, srv.URL)
	agent, err := c.CreateAgent(context.Background(), "support", domain.CallTemplate{SystemPrompt: "be nice", Voice: "Mark"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agent.ID != "agent_9" || agent.CallTemplate.Voice != "Mark" {
		t.Fatalf("unexpected agent mapping: %+v", agent)
	}
	if agent.CreatedAt.IsZero() {
		t.Fatal("created timestamp not mapped")
	}
}

func TestListAgents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[{"agentId":"a1","name":"one"},{"agentId":"a2","name":"two"}]}`))
	}))
	defer srv.Close()

	c := newTestUltravox(t, srv.URL)
	agents, err := c.ListAgents(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(agents) != 2 || agents[0].ID != "a1" || agents[1].Name != "two" {
		t.Fatalf("unexpected agents: %+v", agents)
	}
}

func TestDeleteAgent(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestUltravox(t, srv.URL)
	if err := c.DeleteAgent(context.Background(), "agent_9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/api/agents/agent_9" {
		t.Fatalf("unexpected request: %s %s", gotMethod, gotPath)
	}
}

func TestWrapKeepsCauseChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := newTestUltravox(t, srv.URL)
	_, err := c.GetAgent(context.Background(), "a1")

	var ce *httpclient.Error
	if !errors.As(err, &ce) || ce.Kind != httpclient.KindMalformedResponse {
		t.Fatalf("expected wrapped malformed_response, got %v", err)
	}
}
