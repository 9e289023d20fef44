package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/bdevz/ultravox-twilio-integration-sub000/pkg/errors"
)

// CallPhase enumerates lifecycle stages of a bridged call.
type CallPhase string

const (
	CallPhasePending      CallPhase = "pending"
	CallPhaseJoinObtained CallPhase = "join_obtained"
	CallPhaseCallCreated  CallPhase = "call_created"
	CallPhaseFailed       CallPhase = "failed"
	CallPhaseCompleted    CallPhase = "completed"
)

// CallSession tracks one orchestrated call from join-URL acquisition to
// telephony hand-off. A session belongs to the request that created it and is
// never shared across invocations.
type CallSession struct {
	ID              uuid.UUID
	AgentID         string
	PhoneNumber     string
	TemplateContext map[string]any
	JoinURL         string
	CallSID         string
	Phase           CallPhase
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastError       *string
}

// SetPhase advances the session lifecycle.
func (s *CallSession) SetPhase(phase CallPhase) {
	s.Phase = phase
	s.UpdatedAt = time.Now().UTC()
}

// Fail marks the session failed and records the cause.
func (s *CallSession) Fail(err error) {
	msg := err.Error()
	s.LastError = &msg
	s.SetPhase(CallPhaseFailed)
}

// RetryPolicy defines retry rules for outbound vendor requests. One immutable
// policy per client instance; max_retries counts retries after the first
// attempt, so a request makes at most MaxRetries+1 attempts.
type RetryPolicy struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            bool
}

// Validate rejects policies that would loop forever or compute nonsense
// delays.
func (p RetryPolicy) Validate() error {
	if p.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries must be >= 0", apperrors.ErrValidation)
	}
	if p.BaseDelay <= 0 {
		return fmt.Errorf("%w: base_delay must be > 0", apperrors.ErrValidation)
	}
	if p.MaxDelay < p.BaseDelay {
		return fmt.Errorf("%w: max_delay must be >= base_delay", apperrors.ErrValidation)
	}
	if p.BackoffMultiplier < 1 {
		return fmt.Errorf("%w: backoff_multiplier must be >= 1", apperrors.ErrValidation)
	}
	return nil
}

// Agent is an AI-platform agent definition as surfaced by this service.
type Agent struct {
	ID           string
	Name         string
	CallTemplate CallTemplate
	CreatedAt    time.Time
}

// CallTemplate carries the conversational defaults applied to every call an
// agent handles.
type CallTemplate struct {
	SystemPrompt string
	Voice        string
}
