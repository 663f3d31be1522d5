package service

import (
	"context"
	"errors"
	"strings"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/apperr"
	"github.com/garyjia/justifi/internal/domain/entity"
)

// TypeService administers the justification type registry
type TypeService interface {
	Create(ctx context.Context, t *entity.JustificationType) (*entity.JustificationType, error)
	Get(ctx context.Context, code string) (*entity.JustificationType, error)
	List(ctx context.Context) ([]*entity.JustificationType, error)

	// ValidateDynamicValues checks values against the registered type. Unknown types accept anything.
	ValidateDynamicValues(ctx context.Context, code string, values map[string]any) error
}

type typeServiceImpl struct {
	repo   port.JustificationTypeRepository
	logger Logger
}

var _ TypeService = (*typeServiceImpl)(nil)

// NewTypeService creates a new TypeService
func NewTypeService(repo port.JustificationTypeRepository, logger Logger) TypeService {
	return &typeServiceImpl{
		repo:   repo,
		logger: orNop(logger),
	}
}

// Create registers a type. The code must be unique.
func (s *typeServiceImpl) Create(ctx context.Context, t *entity.JustificationType) (*entity.JustificationType, error) {
	if t == nil {
		return nil, apperr.InvalidArgument("type is required")
	}
	jt := *t
	jt.DynamicFields = append([]entity.DynamicField(nil), t.DynamicFields...)
	jt.Code = strings.TrimSpace(jt.Code)
	jt.Name = strings.TrimSpace(jt.Name)
	if jt.Code == "" {
		return nil, apperr.InvalidArgument("code is required")
	}
	if jt.Name == "" {
		return nil, apperr.InvalidArgument("name is required")
	}

	seen := make(map[string]bool, len(jt.DynamicFields))
	for i, f := range jt.DynamicFields {
		key := strings.TrimSpace(f.Key)
		if key == "" {
			return nil, apperr.InvalidArgument("dynamic_fields[%d].key is required", i)
		}
		if seen[key] {
			return nil, apperr.InvalidArgument("dynamic field %q is declared twice", key)
		}
		seen[key] = true
		jt.DynamicFields[i].Key = key
	}
	if jt.DynamicFields == nil {
		jt.DynamicFields = []entity.DynamicField{}
	}
	jt.CreatedAt = utcNow()

	if err := s.repo.Create(ctx, &jt); err != nil {
		if errors.Is(err, port.ErrDuplicate) {
			return nil, apperr.Conflict(err, "justification type %s already exists", jt.Code)
		}
		s.logger.Error("Failed to create justification type", "error", err, "code", jt.Code)
		return nil, apperr.Internal(err, "failed to create justification type")
	}

	s.logger.Info("Justification type created", "code", jt.Code, "field_count", len(jt.DynamicFields))
	return &jt, nil
}

// Get returns a type by code or NotFound
func (s *typeServiceImpl) Get(ctx context.Context, code string) (*entity.JustificationType, error) {
	code = strings.TrimSpace(code)
	jt, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		s.logger.Error("Failed to get justification type", "error", err, "code", code)
		return nil, apperr.Internal(err, "failed to get justification type %s", code)
	}
	if jt == nil {
		return nil, apperr.NotFound("justification type", code)
	}
	return jt, nil
}

// List returns all registered types
func (s *typeServiceImpl) List(ctx context.Context) ([]*entity.JustificationType, error) {
	types, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list justification types", "error", err)
		return nil, apperr.Internal(err, "failed to list justification types")
	}
	if types == nil {
		types = []*entity.JustificationType{}
	}
	return types, nil
}

// ValidateDynamicValues validates values for the type registered under code
func (s *typeServiceImpl) ValidateDynamicValues(ctx context.Context, code string, values map[string]any) error {
	jt, err := s.repo.GetByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return apperr.Internal(err, "failed to get justification type %s", code)
	}
	if jt == nil {
		return nil
	}
	if err := jt.ValidateValues(values); err != nil {
		return apperr.InvalidArgument("%v", err)
	}
	return nil
}
