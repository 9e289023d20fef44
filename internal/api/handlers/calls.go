package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/domain"
	callsvc "github.com/bdevz/ultravox-twilio-integration-sub000/internal/service/call"
)

type initiateCallRequest struct {
	AgentID         string         `json:"agent_id"`
	PhoneNumber     string         `json:"phone_number"`
	TemplateContext map[string]any `json:"template_context"`
}

type callSessionResponse struct {
	CallSID     string           `json:"call_sid"`
	AgentID     string           `json:"agent_id"`
	PhoneNumber string           `json:"phone_number"`
	JoinURL     string           `json:"join_url"`
	Phase       domain.CallPhase `json:"phase"`
	CreatedAt   time.Time        `json:"created_at"`
}

type listCallsResponse struct {
	Calls []string `json:"calls"`
	Count int      `json:"count"`
}

// statusCallbackRequest mirrors the telephony vendor's webhook form fields.
type statusCallbackRequest struct {
	CallSID    string `form:"CallSid" json:"CallSid"`
	CallStatus string `form:"CallStatus" json:"CallStatus"`
}

func (h *HandlerSet) initiateCall(ctx *fiber.Ctx) error {
	var req initiateCallRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	session, err := h.calls.InitiateCall(ctx.UserContext(), callsvc.InitiateCallInput{
		AgentID:         req.AgentID,
		PhoneNumber:     req.PhoneNumber,
		TemplateContext: req.TemplateContext,
	})
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusCreated).JSON(toCallSessionResponse(session))
}

func (h *HandlerSet) listInflightCalls(ctx *fiber.Ctx) error {
	calls := h.calls.InflightCalls()
	return ctx.JSON(listCallsResponse{Calls: calls, Count: len(calls)})
}

func (h *HandlerSet) callStatusCallback(ctx *fiber.Ctx) error {
	var req statusCallbackRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid callback payload")
	}
	if req.CallSID == "" {
		return fiber.NewError(http.StatusBadRequest, "CallSid is required")
	}

	h.calls.FinishCall(ctx.UserContext(), req.CallSID, req.CallStatus)
	return ctx.SendStatus(http.StatusNoContent)
}

func toCallSessionResponse(session *domain.CallSession) callSessionResponse {
	return callSessionResponse{
		CallSID:     session.CallSID,
		AgentID:     session.AgentID,
		PhoneNumber: session.PhoneNumber,
		JoinURL:     session.JoinURL,
		Phase:       session.Phase,
		CreatedAt:   session.CreatedAt,
	}
}
