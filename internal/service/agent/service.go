// Package agent fronts the AI platform's agent registry with input
// validation, keeping handlers free of vendor wiring.
package agent

import (
	"context"
	"fmt"

	"github.com/bdevz/ultravox-twilio-integration-sub000/internal/domain"
	apperrors "github.com/bdevz/ultravox-twilio-integration-sub000/pkg/errors"
)

// Directory is the slice of the AI platform client the service needs.
type Directory interface {
	CreateAgent(ctx context.Context, name string, template domain.CallTemplate) (*domain.Agent, error)
	GetAgent(ctx context.Context, agentID string) (*domain.Agent, error)
	ListAgents(ctx context.Context) ([]domain.Agent, error)
	UpdateAgent(ctx context.Context, agentID, name string, template domain.CallTemplate) (*domain.Agent, error)
	DeleteAgent(ctx context.Context, agentID string) error
}

// Service manages agent definitions held by the AI platform.
type Service struct {
	directory Directory
}

// NewService constructs an agent service.
func NewService(directory Directory) *Service {
	return &Service{directory: directory}
}

// AgentInput captures the mutable agent properties.
type AgentInput struct {
	Name     string
	Template domain.CallTemplate
}

// Create registers a new agent.
func (s *Service) Create(ctx context.Context, input AgentInput) (*domain.Agent, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("%w: agent name is required", apperrors.ErrValidation)
	}
	return s.directory.CreateAgent(ctx, input.Name, input.Template)
}

// Get retrieves an agent by id.
func (s *Service) Get(ctx context.Context, agentID string) (*domain.Agent, error) {
	if agentID == "" {
		return nil, fmt.Errorf("%w: agent id is required", apperrors.ErrValidation)
	}
	return s.directory.GetAgent(ctx, agentID)
}

// List returns all registered agents.
func (s *Service) List(ctx context.Context) ([]domain.Agent, error) {
	return s.directory.ListAgents(ctx)
}

// Update replaces an agent's name and call template.
func (s *Service) Update(ctx context.Context, agentID string, input AgentInput) (*domain.Agent, error) {
	if agentID == "" {
		return nil, fmt.Errorf("%w: agent id is required", apperrors.ErrValidation)
	}
	if input.Name == "" {
		return nil, fmt.Errorf("%w: agent name is required", apperrors.ErrValidation)
	}
	return s.directory.UpdateAgent(ctx, agentID, input.Name, input.Template)
}

// Delete removes an agent.
func (s *Service) Delete(ctx context.Context, agentID string) error {
	if agentID == "" {
		return fmt.Errorf("%w: agent id is required", apperrors.ErrValidation)
	}
	return s.directory.DeleteAgent(ctx, agentID)
}
