package ultravox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/config"
	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/domain"
	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/httpclient"
	apperrors "github.com/bdevz/ultravox-twilio-integration-sub000/pkg/errors"
)

const providerName = "ultravox"

// Client talks to the conversational-AI platform. Auth is an API key header;
// bodies are JSON.
type Client struct {
	baseURL string
	apiKey  string
	http    *httpclient.Client
}

// NewClient builds the adapter on top of a resilient transport.
func NewClient(cfg config.UltravoxConfig, transport *httpclient.Client) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    transport,
	}
}

type callRequest struct {
	Medium          callMedium     `json:"medium"`
	TemplateContext map[string]any `json:"templateContext,omitempty"`
}

type callMedium struct {
	Twilio struct{} `json:"twilio"`
}

type callResponse struct {
	JoinURL string `json:"joinUrl"`
}

type callTemplatePayload struct {
	SystemPrompt string `json:"systemPrompt"`
	Voice        string `json:"voice,omitempty"`
}

type agentRequest struct {
	Name         string              `json:"name"`
	CallTemplate callTemplatePayload `json:"callTemplate"`
}

type agentResponse struct {
	AgentID      string              `json:"agentId"`
	Name         string              `json:"name"`
	Created      time.Time           `json:"created"`
	CallTemplate callTemplatePayload `json:"callTemplate"`
}

type listAgentsResponse struct {
	Results []agentResponse `json:"results"`
}

// CreateAgentCall starts a telephony-medium call session for the agent and
// returns the WebSocket join URL the telephony leg must stream to.
func (c *Client) CreateAgentCall(ctx context.Context, agentID string, templateContext map[string]any) (string, error) {
	endpoint := fmt.Sprintf("%s/api/agents/%s/calls", c.baseURL, url.PathEscape(agentID))

	var out callResponse
	err := c.http.Execute(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    endpoint,
		Header: c.authHeader(),
		JSON:   callRequest{TemplateContext: templateContext},
	}, &out)
	if err != nil {
		return "", c.wrap(endpoint, err)
	}
	return out.JoinURL, nil
}

// CreateAgent registers a new agent definition with the platform.
func (c *Client) CreateAgent(ctx context.Context, name string, template domain.CallTemplate) (*domain.Agent, error) {
	endpoint := c.baseURL + "/api/agents"

	var out agentResponse
	err := c.http.Execute(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    endpoint,
		Header: c.authHeader(),
		JSON:   toAgentRequest(name, template),
	}, &out)
	if err != nil {
		return nil, c.wrap(endpoint, err)
	}
	return toDomainAgent(out), nil
}

// GetAgent fetches one agent definition.
func (c *Client) GetAgent(ctx context.Context, agentID string) (*domain.Agent, error) {
	endpoint := fmt.Sprintf("%s/api/agents/%s", c.baseURL, url.PathEscape(agentID))

	var out agentResponse
	err := c.http.Execute(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    endpoint,
		Header: c.authHeader(),
	}, &out)
	if err != nil {
		return nil, c.wrap(endpoint, err)
	}
	return toDomainAgent(out), nil
}

// ListAgents fetches all agent definitions.
func (c *Client) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	endpoint := c.baseURL + "/api/agents"

	var out listAgentsResponse
	err := c.http.Execute(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    endpoint,
		Header: c.authHeader(),
	}, &out)
	if err != nil {
		return nil, c.wrap(endpoint, err)
	}

	agents := make([]domain.Agent, 0, len(out.Results))
	for _, item := range out.Results {
		agents = append(agents, *toDomainAgent(item))
	}
	return agents, nil
}

// UpdateAgent replaces an agent definition.
func (c *Client) UpdateAgent(ctx context.Context, agentID, name string, template domain.CallTemplate) (*domain.Agent, error) {
	endpoint := fmt.Sprintf("%s/api/agents/%s", c.baseURL, url.PathEscape(agentID))

	var out agentResponse
	err := c.http.Execute(ctx, httpclient.Request{
		Method: http.MethodPut,
		URL:    endpoint,
		Header: c.authHeader(),
		JSON:   toAgentRequest(name, template),
	}, &out)
	if err != nil {
		return nil, c.wrap(endpoint, err)
	}
	return toDomainAgent(out), nil
}

// DeleteAgent removes an agent definition.
func (c *Client) DeleteAgent(ctx context.Context, agentID string) error {
	endpoint := fmt.Sprintf("%s/api/agents/%s", c.baseURL, url.PathEscape(agentID))

	err := c.http.Execute(ctx, httpclient.Request{
		Method: http.MethodDelete,
		URL:    endpoint,
		Header: c.authHeader(),
	}, nil)
	if err != nil {
		return c.wrap(endpoint, err)
	}
	return nil
}

func (c *Client) authHeader() http.Header {
	return http.Header{"X-API-Key": []string{c.apiKey}}
}

func (c *Client) wrap(endpoint string, err error) error {
	ext := &apperrors.ExternalServiceError{Provider: providerName, Endpoint: endpoint, Err: err}
	var ce *httpclient.Error
	if errors.As(err, &ce) {
		ext.Status = ce.Status
		ext.Detail = ce.Detail
	} else {
		ext.Detail = err.Error()
	}
	return ext
}

func toAgentRequest(name string, template domain.CallTemplate) agentRequest {
	return agentRequest{
		Name: name,
		CallTemplate: callTemplatePayload{
			SystemPrompt: template.SystemPrompt,
			Voice:        template.Voice,
		},
	}
}

func toDomainAgent(resp agentResponse) *domain.Agent {
	return &domain.Agent{
		ID:        resp.AgentID,
		Name:      resp.Name,
		CreatedAt: resp.Created,
		CallTemplate: domain.CallTemplate{
			SystemPrompt: resp.CallTemplate.SystemPrompt,
			Voice:        resp.CallTemplate.Voice,
		},
	}
}
