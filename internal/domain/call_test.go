package domain

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/bdevz/ultravox-twilio-integration-sub000/pkg/errors"
)

func TestRetryPolicyValidate(t *testing.T) {
	valid := RetryPolicy{
		MaxRetries:        3,
		BaseDelay:         time.Second,
		MaxDelay:          16 * time.Second,
		BackoffMultiplier: 2,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// zero retries means a single attempt, which is allowed
	single := valid
	single.MaxRetries = 0
	if err := single.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*RetryPolicy)
	}{
		{"negative retries", func(p *RetryPolicy) { p.MaxRetries = -1 }},
		{"zero base delay", func(p *RetryPolicy) { p.BaseDelay = 0 }},
		{"max below base", func(p *RetryPolicy) { p.MaxDelay = valid.BaseDelay / 2 }},
		{"shrinking multiplier", func(p *RetryPolicy) { p.BackoffMultiplier = 0.5 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			policy := valid
			tc.mutate(&policy)
			if err := policy.Validate(); !errors.Is(err, apperrors.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCallSessionFail(t *testing.T) {
	session := &CallSession{Phase: CallPhaseJoinObtained}
	session.Fail(errors.New("dial blew up"))

	if session.Phase != CallPhaseFailed {
		t.Fatalf("expected failed phase, got %s", session.Phase)
	}
	if session.LastError == nil || *session.LastError != "dial blew up" {
		t.Fatalf("expected recorded cause, got %v", session.LastError)
	}
	if session.UpdatedAt.IsZero() {
		t.Fatal("phase change must touch UpdatedAt")
	}
}
