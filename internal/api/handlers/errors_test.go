package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/httpclient"
	callsvc "github.com/bdevz/ultravox-twilio-integration-sub000/internal/service/call"
	apperrors "github.com/bdevz/ultravox-twilio-integration-sub000/pkg/errors"
)

func TestTranslateError(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{
			name:     "validation",
			err:      fmt.Errorf("%w: phone number must be E.164", apperrors.ErrValidation),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "not found sentinel",
			err:      apperrors.ErrNotFound,
			wantCode: http.StatusNotFound,
		},
		{
			name:     "quota exceeded",
			err:      apperrors.ErrQuotaExceeded,
			wantCode: http.StatusTooManyRequests,
		},
		{
			name: "unknown agent during join step",
			err: &callsvc.StepError{
				Step: callsvc.StepJoin,
				Err: &apperrors.ExternalServiceError{
					Provider: "ultravox",
					Status:   http.StatusNotFound,
					Detail:   "agent not found",
				},
			},
			wantCode: http.StatusNotFound,
		},
		{
			name: "telephony 404 is a gateway fault",
			err: &callsvc.StepError{
				Step: callsvc.StepCall,
				Err: &apperrors.ExternalServiceError{
					Provider: "twilio",
					Status:   http.StatusNotFound,
					Detail:   "not found",
				},
			},
			wantCode: http.StatusBadGateway,
		},
		{
			name: "vendor throttling",
			err: &callsvc.StepError{
				Step: callsvc.StepCall,
				Err: &apperrors.ExternalServiceError{
					Provider: "twilio",
					Status:   http.StatusTooManyRequests,
					Err:      &httpclient.Error{Kind: httpclient.KindRateLimited, Status: http.StatusTooManyRequests},
				},
			},
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name: "business failure inside a step",
			err: &callsvc.StepError{
				Step: callsvc.StepJoin,
				Err:  callsvc.ErrEmptyJoinURL,
			},
			wantCode: http.StatusBadGateway,
		},
		{
			name: "agent directory outage",
			err: &apperrors.ExternalServiceError{
				Provider: "ultravox",
				Status:   http.StatusServiceUnavailable,
				Detail:   "service unavailable",
			},
			wantCode: http.StatusBadGateway,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			translated := translateError(tc.err)
			var fiberErr *fiber.Error
			if !errors.As(translated, &fiberErr) {
				t.Fatalf("expected a fiber error, got %T: %v", translated, translated)
			}
			if fiberErr.Code != tc.wantCode {
				t.Fatalf("expected status %d, got %d (%s)", tc.wantCode, fiberErr.Code, fiberErr.Message)
			}
		})
	}
}

func TestTranslateErrorPassesUnknownThrough(t *testing.T) {
	cause := errors.New("boom")
	if got := translateError(cause); got != cause {
		t.Fatalf("unknown errors must pass through untouched, got %v", got)
	}
	if got := translateError(nil); got != nil {
		t.Fatalf("nil must stay nil, got %v", got)
	}
}
