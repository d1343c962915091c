package voicecampaign

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Campaign lifecycle states.
const (
	StatusDraft     = "draft"
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
)

var validStatuses = map[string]bool{
	StatusDraft:     true,
	StatusActive:    true,
	StatusPaused:    true,
	StatusCompleted: true,
}

// Service owns campaign business rules.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

// NewService creates a campaign service.
func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func validate(c *Campaign) error {
	if c.Name == "" {
		return fmt.Errorf("campaign name is required")
	}
	if c.Status != "" && !validStatuses[c.Status] {
		return fmt.Errorf("invalid campaign status %q", c.Status)
	}
	return nil
}

// Create validates and stores a new campaign. Status defaults to draft.
func (s *Service) Create(ctx context.Context, c *Campaign) error {
	if c.Status == "" {
		c.Status = StatusDraft
	}
	if err := validate(c); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return err
	}
	s.logger.Info().Str("campaign_id", c.ID.String()).Str("name", c.Name).Msg("campaign created")
	return nil
}

// Get returns a campaign by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Campaign, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns campaigns, optionally filtered by status.
func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]*Campaign, int, error) {
	if status != "" && !validStatuses[status] {
		return nil, 0, fmt.Errorf("invalid campaign status %q", status)
	}
	return s.repo.List(ctx, status, limit, offset)
}

// Update validates and persists changes to an existing campaign.
func (s *Service) Update(ctx context.Context, c *Campaign) error {
	if err := validate(c); err != nil {
		return err
	}
	return s.repo.Update(ctx, c)
}

// Delete removes a campaign.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}
