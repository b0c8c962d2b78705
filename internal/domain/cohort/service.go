package cohort

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	defs DefinitionRepository
}

func NewService(defs DefinitionRepository) *Service {
	return &Service{defs: defs}
}

func (s *Service) CreateDefinition(ctx context.Context, d *Definition) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(d.Query) == "" {
		return fmt.Errorf("query is required")
	}
	existing, err := s.defs.FindByName(ctx, d.Name)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("a cohort query named %q already exists", d.Name)
	}
	return s.defs.Create(ctx, d)
}

func (s *Service) GetDefinition(ctx context.Context, id uuid.UUID) (*Definition, error) {
	return s.defs.GetByID(ctx, id)
}

func (s *Service) ListDefinitions(ctx context.Context, includeRetired bool, limit, offset int) ([]*Definition, int, error) {
	return s.defs.List(ctx, includeRetired, limit, offset)
}

func (s *Service) UpdateDefinition(ctx context.Context, d *Definition) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(d.Query) == "" {
		return fmt.Errorf("query is required")
	}
	return s.defs.Update(ctx, d)
}

func (s *Service) RetireDefinition(ctx context.Context, id uuid.UUID) error {
	return s.defs.SetRetired(ctx, id, true)
}

func (s *Service) UnretireDefinition(ctx context.Context, id uuid.UUID) error {
	return s.defs.SetRetired(ctx, id, false)
}

// FindByTrigger resolves the single definition matching a trigger name. The
// match is case-insensitive and excludes retired definitions. It fails with
// ResolutionError when nothing matches and AmbiguousTriggerError when more
// than one definition does.
func (s *Service) FindByTrigger(ctx context.Context, triggerName string) (*Definition, error) {
	defs, err := s.defs.FindByName(ctx, triggerName)
	if err != nil {
		return nil, &ResolutionError{Trigger: triggerName, Err: err}
	}
	if len(defs) == 0 {
		return nil, &ResolutionError{Trigger: triggerName}
	}
	if len(defs) > 1 {
		return nil, &AmbiguousTriggerError{Trigger: triggerName, Count: len(defs)}
	}
	return defs[0], nil
}

// MatchedPatients resolves the trigger's definition and evaluates its stored
// query, returning the matched patient ids.
func (s *Service) MatchedPatients(ctx context.Context, triggerName string) ([]uuid.UUID, error) {
	def, err := s.FindByTrigger(ctx, triggerName)
	if err != nil {
		return nil, err
	}
	ids, err := s.defs.Evaluate(ctx, def.Query)
	if err != nil {
		return nil, &ResolutionError{Trigger: triggerName, Err: fmt.Errorf("evaluate cohort query: %w", err)}
	}
	return ids, nil
}
