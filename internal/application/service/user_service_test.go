package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/justifi/internal/domain/apperr"
	"github.com/garyjia/justifi/internal/domain/entity"
)

func TestUserService_Put(t *testing.T) {
	t.Run("normalizes email and defaults role", func(t *testing.T) {
		repo := newMockUserRepo()
		svc := NewUserService(repo, &mockLogger{})

		u, err := svc.Put(context.Background(), " Dev@X.com ", UserInput{Name: " Dev ", Department: ptr(" ")})

		require.NoError(t, err)
		assert.Equal(t, "dev@x.com", u.Email)
		assert.Equal(t, "Dev", u.Name)
		assert.Equal(t, entity.RoleUser, u.Role)
		assert.Nil(t, u.Department)
		assert.Contains(t, repo.users, "dev@x.com")
	})

	tests := []struct {
		name  string
		email string
		in    UserInput
	}{
		{"bad email", "nobody", UserInput{Name: "N"}},
		{"missing name", "a@x.com", UserInput{Name: " "}},
		{"unknown role", "a@x.com", UserInput{Name: "N", Role: "owner"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockUserRepo()
			svc := NewUserService(repo, nil)

			_, err := svc.Put(context.Background(), tt.email, tt.in)

			assert.True(t, apperr.IsInvalidArgument(err))
			assert.Empty(t, repo.users)
		})
	}
}

func TestUserService_GetDelete(t *testing.T) {
	repo := newMockUserRepo(&entity.User{Email: "cfo@x.com", Name: "CFO", Role: entity.RoleApprover})
	svc := NewUserService(repo, nil)
	ctx := context.Background()

	u, err := svc.Get(ctx, "CFO@x.com")
	require.NoError(t, err)
	assert.Equal(t, entity.RoleApprover, u.Role)

	require.NoError(t, svc.Delete(ctx, "cfo@x.com"))
	assert.True(t, apperr.IsNotFound(svc.Delete(ctx, "cfo@x.com")))

	users, err := svc.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}
