package voicecampaign

import (
	"context"

	"github.com/google/uuid"
)

// Repository abstracts campaign persistence.
type Repository interface {
	Create(ctx context.Context, c *Campaign) error
	GetByID(ctx context.Context, id uuid.UUID) (*Campaign, error)
	List(ctx context.Context, status string, limit, offset int) ([]*Campaign, int, error)
	Update(ctx context.Context, c *Campaign) error
	Delete(ctx context.Context, id uuid.UUID) error
}
