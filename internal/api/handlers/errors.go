package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/httpclient"
	callsvc "github.com/bdevz/ultravox-twilio-integration-sub000/internal/service/call"
	apperrors "github.com/bdevz/ultravox-twilio-integration-sub000/pkg/errors"
)

func translateError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "resource not found")
	case errors.Is(err, apperrors.ErrConflict):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, apperrors.ErrQuotaExceeded):
		return fiber.NewError(http.StatusTooManyRequests, err.Error())
	case errors.Is(err, apperrors.ErrUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, err.Error())
	}

	if stepErr, ok := callsvc.AsStepError(err); ok {
		return translateStepError(stepErr)
	}
	if ext, ok := apperrors.AsExternal(err); ok {
		return translateVendorError(err, ext, "")
	}
	return err
}

func translateStepError(stepErr *callsvc.StepError) error {
	if ext, ok := apperrors.AsExternal(stepErr.Err); ok {
		return translateVendorError(stepErr.Err, ext, stepErr.Step)
	}
	// business failures inside a step, e.g. an unusable join url
	return fiber.NewError(http.StatusBadGateway,
		fmt.Sprintf("call setup failed during %s step: %s", stepErr.Step, stepErr.Err))
}

// translateVendorError maps upstream failures onto caller-facing statuses. A
// missing agent is the caller's mistake; everything else from a vendor is a
// gateway problem from the caller's point of view.
func translateVendorError(err error, ext *apperrors.ExternalServiceError, step string) error {
	if step != callsvc.StepCall && ext.Status == http.StatusNotFound {
		return fiber.NewError(http.StatusNotFound, "agent not found")
	}
	if kind, ok := httpclient.KindOf(err); ok && kind == httpclient.KindRateLimited {
		return fiber.NewError(http.StatusServiceUnavailable,
			fmt.Sprintf("%s is rate limiting requests, retry later", ext.Provider))
	}

	if step != "" {
		return fiber.NewError(http.StatusBadGateway,
			fmt.Sprintf("upstream %s failure during %s step", ext.Provider, step))
	}
	return fiber.NewError(http.StatusBadGateway, fmt.Sprintf("upstream %s failure", ext.Provider))
}
