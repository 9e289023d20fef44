package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"

	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/app"
	agentsvc "github.com/bdevz/ultravox-twilio-integration-sub000/internal/service/agent"
	callsvc "github.com/bdevz/ultravox-twilio-integration-sub000/internal/service/call"
)

// HandlerSet bundles all HTTP handlers.
type HandlerSet struct {
	container *app.Container
	calls     *callsvc.Service
	agents    *agentsvc.Service
}

// NewHandlerSet creates a new handler bundle.
func NewHandlerSet(container *app.Container) *HandlerSet {
	services := container.Services()
	return &HandlerSet{
		container: container,
		calls:     services.Call,
		agents:    services.Agent,
	}
}

// Register wires all routes onto the fiber app.
func (h *HandlerSet) Register(app *fiber.App) {
	app.Get("/healthz", h.health)
	app.Get("/metrics", adaptor.HTTPHandler(h.container.Recorder.Handler()))

	api := app.Group("/api")
	v1 := api.Group("/v1")

	calls := v1.Group("/calls")
	calls.Post("/", h.initiateCall)
	calls.Get("/", h.listInflightCalls)
	calls.Post("/status", h.callStatusCallback)

	agents := v1.Group("/agents")
	agents.Post("/", h.createAgent)
	agents.Get("/", h.listAgents)
	agents.Get("/:id", h.getAgent)
	agents.Put("/:id", h.updateAgent)
	agents.Delete("/:id", h.deleteAgent)
}

// ErrorHandler provides centralized error responses.
func (h *HandlerSet) ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	if fiberErr, ok := err.(*fiber.Error); ok {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	if code == fiber.StatusInternalServerError {
		h.container.Logger.Error("request failed", zap.Error(err))
	}

	return ctx.Status(code).JSON(fiber.Map{
		"error":      message,
		"request_id": ctx.GetRespHeader(fiber.HeaderXRequestID),
	})
}

func (h *HandlerSet) health(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"status":    "ok",
		"service":   h.container.Config.App.Name,
		"version":   h.container.Config.App.Version,
		"in_flight": h.container.Inflight.Len(),
	})
}
