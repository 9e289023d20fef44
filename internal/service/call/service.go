package call

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/domain"
	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/observability"
	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/queue"
	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/tracking"
	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/twilio"
	apperrors "github.com/bdevz/ultravox-twilio-integration-sub000/pkg/errors"
	"github.com/bdevz/ultravox-twilio-integration-sub000/pkg/logger"
)

// Saga steps, used to tag which remote call failed.
const (
	StepJoin = "join"
	StepCall = "call"
)

// Vendor statuses that terminate a call unsuccessfully.
var failedVendorStatuses = map[string]bool{
	"failed":    true,
	"busy":      true,
	"no-answer": true,
	"canceled":  true,
}

// ErrEmptyJoinURL marks an AI-platform response that was well-formed but
// unusable: no stream endpoint to bridge the call to.
var ErrEmptyJoinURL = errors.New("ai platform returned an empty join url")

var phonePattern = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

// AgentCaller obtains a streaming join URL for an agent call session.
type AgentCaller interface {
	CreateAgentCall(ctx context.Context, agentID string, templateContext map[string]any) (string, error)
}

// CallPlacer dials a destination and bridges it to a join URL.
type CallPlacer interface {
	PlaceCall(ctx context.Context, to, joinURL string) (*twilio.Call, error)
}

// EventPublisher emits call lifecycle events. Optional; a nil publisher
// disables eventing.
type EventPublisher interface {
	Publish(ctx context.Context, event queue.CallEvent) error
}

// StepError tags a saga failure with the step it occurred in.
type StepError struct {
	Step        string
	AgentID     string
	PhoneNumber string
	Elapsed     time.Duration
	Err         error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step failed for agent %s: %v", e.Step, e.AgentID, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// AsStepError unwraps err to a StepError if one is present.
func AsStepError(err error) (*StepError, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Service orchestrates the two-step call saga: obtain a join URL from the AI
// platform, then place the telephony call that streams to it.
type Service struct {
	agents    AgentCaller
	telephony CallPlacer
	inflight  *tracking.Inflight
	events    EventPublisher
	recorder  observability.Recorder
	logger    *logger.Logger
}

// NewService builds the orchestrator. events may be nil.
func NewService(
	agents AgentCaller,
	telephony CallPlacer,
	inflight *tracking.Inflight,
	events EventPublisher,
	recorder observability.Recorder,
	lg *logger.Logger,
) *Service {
	if recorder == nil {
		recorder = observability.NopRecorder{}
	}
	return &Service{
		agents:    agents,
		telephony: telephony,
		inflight:  inflight,
		events:    events,
		recorder:  recorder,
		logger:    lg,
	}
}

// InitiateCallInput encapsulates the arguments for starting a bridged call.
type InitiateCallInput struct {
	AgentID         string
	PhoneNumber     string
	TemplateContext map[string]any
}

// InitiateCall runs the saga for one call. The returned session is exclusive
// to this invocation. On failure the error is a *StepError naming the failing
// step; any call SID registered before the failure has been unregistered
// again by the time the error is returned.
func (s *Service) InitiateCall(ctx context.Context, input InitiateCallInput) (*domain.CallSession, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	tracer := otel.Tracer("bridge.call")
	sctx, span := tracer.Start(ctx, "call.initiate", trace.WithAttributes(
		attribute.String("agent.id", input.AgentID),
		attribute.String("phone.number", input.PhoneNumber),
	))
	defer span.End()

	now := time.Now().UTC()
	session := &domain.CallSession{
		ID:              uuid.New(),
		AgentID:         input.AgentID,
		PhoneNumber:     input.PhoneNumber,
		TemplateContext: input.TemplateContext,
		Phase:           domain.CallPhasePending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// Compensation guard: if anything fails after the telephony vendor
	// accepted the call, take the SID back out of the in-flight set.
	// Best-effort only, so it never masks the original failure.
	defer func() {
		if session.CallSID != "" && session.Phase == domain.CallPhaseFailed {
			if s.inflight.Unregister(session.CallSID) {
				s.logWarn("compensated in-flight registration",
					zap.String("call_sid", session.CallSID))
			}
		}
	}()

	joinStart := time.Now()
	joinURL, err := s.agents.CreateAgentCall(sctx, input.AgentID, input.TemplateContext)
	if err != nil {
		return nil, s.fail(sctx, span, session, StepJoin, time.Since(joinStart), err)
	}
	if joinURL == "" {
		return nil, s.fail(sctx, span, session, StepJoin, time.Since(joinStart), ErrEmptyJoinURL)
	}
	session.JoinURL = joinURL
	session.SetPhase(domain.CallPhaseJoinObtained)
	span.AddEvent("join url obtained")

	callStart := time.Now()
	placed, err := s.telephony.PlaceCall(sctx, input.PhoneNumber, joinURL)
	if err != nil {
		return nil, s.fail(sctx, span, session, StepCall, time.Since(callStart), err)
	}

	session.CallSID = placed.SID
	s.inflight.Register(placed.SID)
	span.SetAttributes(attribute.String("call.sid", placed.SID))

	// The vendor can accept the request yet report the call dead on arrival.
	if failedVendorStatuses[placed.Status] {
		return nil, s.fail(sctx, span, session, StepCall, time.Since(callStart),
			fmt.Errorf("vendor reported terminal status %q", placed.Status))
	}

	session.SetPhase(domain.CallPhaseCallCreated)
	s.recorder.IncCallOutcome("created")
	s.publish(sctx, queue.CallEvent{
		Type:        queue.EventCallCreated,
		CallSID:     placed.SID,
		AgentID:     input.AgentID,
		PhoneNumber: input.PhoneNumber,
		JoinURL:     joinURL,
		RequestID:   observability.RequestID(sctx),
	})
	s.logInfo("call created",
		zap.String("call_sid", placed.SID),
		zap.String("agent_id", input.AgentID),
		zap.String("vendor_status", placed.Status))

	return session, nil
}

// FinishCall records a terminal vendor status for a live call, removing it
// from the in-flight set. Unknown SIDs are ignored so vendor callback
// retries stay harmless.
func (s *Service) FinishCall(ctx context.Context, callSID, vendorStatus string) {
	if callSID == "" || !s.inflight.Unregister(callSID) {
		return
	}

	eventType := queue.EventCallCompleted
	outcome := "completed"
	if failedVendorStatuses[vendorStatus] {
		eventType = queue.EventCallFailed
		outcome = vendorStatus
	}

	s.recorder.IncCallOutcome(outcome)
	s.publish(ctx, queue.CallEvent{
		Type:      eventType,
		CallSID:   callSID,
		Error:     vendorError(vendorStatus),
		RequestID: observability.RequestID(ctx),
	})
	s.logInfo("call finished",
		zap.String("call_sid", callSID),
		zap.String("vendor_status", vendorStatus))
}

// InflightCalls reports the currently live call SIDs, sorted.
func (s *Service) InflightCalls() []string {
	return s.inflight.Snapshot()
}

func (s *Service) fail(ctx context.Context, span trace.Span, session *domain.CallSession, step string, elapsed time.Duration, cause error) error {
	session.Fail(cause)

	stepErr := &StepError{
		Step:        step,
		AgentID:     session.AgentID,
		PhoneNumber: session.PhoneNumber,
		Elapsed:     elapsed,
		Err:         cause,
	}

	span.RecordError(stepErr)
	s.recorder.IncCallOutcome("failed")
	s.publish(ctx, queue.CallEvent{
		Type:        queue.EventCallFailed,
		CallSID:     session.CallSID,
		AgentID:     session.AgentID,
		PhoneNumber: session.PhoneNumber,
		Step:        step,
		Error:       cause.Error(),
		RequestID:   observability.RequestID(ctx),
	})
	s.logError("call orchestration failed",
		zap.String("step", step),
		zap.String("agent_id", session.AgentID),
		zap.Duration("elapsed", elapsed),
		zap.Error(cause))

	return stepErr
}

func (s *Service) publish(ctx context.Context, event queue.CallEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logWarn("publish call event", zap.String("type", event.Type), zap.Error(err))
	}
}

func (s *Service) logInfo(msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Info(msg, fields...)
	}
}

func (s *Service) logWarn(msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Warn(msg, fields...)
	}
}

func (s *Service) logError(msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Error(msg, fields...)
	}
}

func validateInput(input InitiateCallInput) error {
	if input.AgentID == "" {
		return fmt.Errorf("%w: agent id is required", apperrors.ErrValidation)
	}
	if input.PhoneNumber == "" {
		return fmt.Errorf("%w: phone number is required", apperrors.ErrValidation)
	}
	if !phonePattern.MatchString(input.PhoneNumber) {
		return fmt.Errorf("%w: phone number must be E.164", apperrors.ErrValidation)
	}
	return nil
}

func vendorError(vendorStatus string) string {
	if failedVendorStatuses[vendorStatus] {
		return "vendor reported terminal status " + vendorStatus
	}
	return ""
}
