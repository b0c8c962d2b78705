package cohort

import (
	"context"

	"github.com/google/uuid"
)

type DefinitionRepository interface {
	Create(ctx context.Context, d *Definition) error
	GetByID(ctx context.Context, id uuid.UUID) (*Definition, error)
	// FindByName returns every non-retired definition whose name matches,
	// compared case-insensitively.
	FindByName(ctx context.Context, name string) ([]*Definition, error)
	List(ctx context.Context, includeRetired bool, limit, offset int) ([]*Definition, int, error)
	Update(ctx context.Context, d *Definition) error
	SetRetired(ctx context.Context, id uuid.UUID, retired bool) error
	// Evaluate runs a definition's stored query and returns the matched
	// patient ids.
	Evaluate(ctx context.Context, query string) ([]uuid.UUID, error)
}
