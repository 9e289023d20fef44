package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/domain"
	agentsvc "github.com/bdevz/ultravox-twilio-integration-sub000/internal/service/agent"
)

type agentRequest struct {
	Name         string              `json:"name"`
	CallTemplate callTemplateRequest `json:"call_template"`
}

type callTemplateRequest struct {
	SystemPrompt string `json:"system_prompt"`
	Voice        string `json:"voice"`
}

type agentResponse struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	CallTemplate callTemplateRequest `json:"call_template"`
	CreatedAt    time.Time           `json:"created_at"`
}

type listAgentsResponse struct {
	Agents []agentResponse `json:"agents"`
}

func (h *HandlerSet) createAgent(ctx *fiber.Ctx) error {
	var req agentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	agent, err := h.agents.Create(ctx.UserContext(), toAgentInput(req))
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusCreated).JSON(toAgentResponse(agent))
}

func (h *HandlerSet) listAgents(ctx *fiber.Ctx) error {
	agents, err := h.agents.List(ctx.UserContext())
	if err != nil {
		return translateError(err)
	}

	resp := listAgentsResponse{Agents: make([]agentResponse, 0, len(agents))}
	for i := range agents {
		resp.Agents = append(resp.Agents, toAgentResponse(&agents[i]))
	}
	return ctx.JSON(resp)
}

func (h *HandlerSet) getAgent(ctx *fiber.Ctx) error {
	agent, err := h.agents.Get(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(toAgentResponse(agent))
}

func (h *HandlerSet) updateAgent(ctx *fiber.Ctx) error {
	var req agentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	agent, err := h.agents.Update(ctx.UserContext(), ctx.Params("id"), toAgentInput(req))
	if err != nil {
		return translateError(err)
	}
	return ctx.JSON(toAgentResponse(agent))
}

func (h *HandlerSet) deleteAgent(ctx *fiber.Ctx) error {
	if err := h.agents.Delete(ctx.UserContext(), ctx.Params("id")); err != nil {
		return translateError(err)
	}
	return ctx.SendStatus(http.StatusNoContent)
}

func toAgentInput(req agentRequest) agentsvc.AgentInput {
	return agentsvc.AgentInput{
		Name: req.Name,
		Template: domain.CallTemplate{
			SystemPrompt: req.CallTemplate.SystemPrompt,
			Voice:        req.CallTemplate.Voice,
		},
	}
}

func toAgentResponse(agent *domain.Agent) agentResponse {
	return agentResponse{
		ID:   agent.ID,
		Name: agent.Name,
		CallTemplate: callTemplateRequest{
			SystemPrompt: agent.CallTemplate.SystemPrompt,
			Voice:        agent.CallTemplate.Voice,
		},
		CreatedAt: agent.CreatedAt,
	}
}
