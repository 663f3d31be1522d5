package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/justifi/internal/domain/apperr"
	"github.com/garyjia/justifi/internal/domain/entity"
)

func capexType() *entity.JustificationType {
	return &entity.JustificationType{
		Code: " CAPEX ",
		Name: "Capital expenditure",
		DynamicFields: []entity.DynamicField{
			{Key: "asset_class", Label: "Asset class", Type: "select", Required: true, Options: []string{"hardware", "software"}},
			{Key: "vendor", Label: "Vendor", Type: "text"},
		},
	}
}

func TestTypeService_Create(t *testing.T) {
	t.Run("registers a type", func(t *testing.T) {
		repo := newMockTypeRepo()
		svc := NewTypeService(repo, &mockLogger{})

		jt, err := svc.Create(context.Background(), capexType())

		require.NoError(t, err)
		assert.Equal(t, "CAPEX", jt.Code)
		assert.False(t, jt.CreatedAt.IsZero())
		assert.Contains(t, repo.types, "CAPEX")
	})

	t.Run("duplicate code conflicts", func(t *testing.T) {
		svc := NewTypeService(newMockTypeRepo(), nil)
		_, err := svc.Create(context.Background(), capexType())
		require.NoError(t, err)

		_, err = svc.Create(context.Background(), capexType())

		assert.True(t, apperr.IsConflict(err))
	})

	t.Run("validation", func(t *testing.T) {
		svc := NewTypeService(newMockTypeRepo(), nil)

		_, err := svc.Create(context.Background(), &entity.JustificationType{Name: "No code"})
		assert.True(t, apperr.IsInvalidArgument(err))

		_, err = svc.Create(context.Background(), &entity.JustificationType{Code: "X"})
		assert.True(t, apperr.IsInvalidArgument(err))

		dup := capexType()
		dup.DynamicFields = append(dup.DynamicFields, entity.DynamicField{Key: "vendor"})
		_, err = svc.Create(context.Background(), dup)
		assert.True(t, apperr.IsInvalidArgument(err))
	})
}

func TestTypeService_GetAndValidate(t *testing.T) {
	svc := NewTypeService(newMockTypeRepo(), nil)
	ctx := context.Background()
	_, err := svc.Create(ctx, capexType())
	require.NoError(t, err)

	_, err = svc.Get(ctx, "OPEX")
	assert.True(t, apperr.IsNotFound(err))

	jt, err := svc.Get(ctx, "CAPEX")
	require.NoError(t, err)
	assert.Len(t, jt.DynamicFields, 2)

	assert.NoError(t, svc.ValidateDynamicValues(ctx, "CAPEX", map[string]any{"asset_class": "hardware"}))
	assert.True(t, apperr.IsInvalidArgument(svc.ValidateDynamicValues(ctx, "CAPEX", map[string]any{})))
	assert.True(t, apperr.IsInvalidArgument(svc.ValidateDynamicValues(ctx, "CAPEX", map[string]any{"asset_class": "land"})))
	assert.NoError(t, svc.ValidateDynamicValues(ctx, "UNKNOWN", nil))
}
