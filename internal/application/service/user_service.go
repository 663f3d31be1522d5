package service

import (
	"context"
	"strings"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/apperr"
	"github.com/garyjia/justifi/internal/domain/entity"
	"github.com/garyjia/justifi/pkg/utils"
)

// UserInput is the editable part of a directory entry
type UserInput struct {
	Name       string  `json:"name" yaml:"name"`
	Department *string `json:"department,omitempty" yaml:"department,omitempty"`
	Role       string  `json:"role" yaml:"role"`
}

// UserService administers the user directory
type UserService interface {
	// Put creates or replaces the user stored under email
	Put(ctx context.Context, email string, in UserInput) (*entity.User, error)
	Get(ctx context.Context, email string) (*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)
	Delete(ctx context.Context, email string) error
}

type userServiceImpl struct {
	repo   port.UserRepository
	logger Logger
}

var _ UserService = (*userServiceImpl)(nil)

// NewUserService creates a new UserService
func NewUserService(repo port.UserRepository, logger Logger) UserService {
	return &userServiceImpl{
		repo:   repo,
		logger: orNop(logger),
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := utils.ValidateEmail(email); err != nil {
		return "", apperr.InvalidArgument("email: %v", err)
	}
	return email, nil
}

// Put validates and stores the user. Role defaults to user.
func (s *userServiceImpl) Put(ctx context.Context, email string, in UserInput) (*entity.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.InvalidArgument("name is required")
	}
	role := strings.ToLower(strings.TrimSpace(in.Role))
	if role == "" {
		role = entity.RoleUser
	}
	if !entity.IsValidRole(role) {
		return nil, apperr.InvalidArgument("role must be one of %s, %s, %s", entity.RoleUser, entity.RoleApprover, entity.RoleAdmin)
	}

	now := utcNow()
	u := &entity.User{
		Email:      email,
		Name:       name,
		Department: trimOptional(in.Department),
		Role:       role,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Upsert(ctx, u); err != nil {
		s.logger.Error("Failed to save user", "error", err, "email", email)
		return nil, apperr.Internal(err, "failed to save user %s", email)
	}

	s.logger.Info("User saved", "email", email, "role", role)
	return u, nil
}

// Get returns a user or NotFound
func (s *userServiceImpl) Get(ctx context.Context, email string) (*entity.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		s.logger.Error("Failed to get user", "error", err, "email", email)
		return nil, apperr.Internal(err, "failed to get user %s", email)
	}
	if u == nil {
		return nil, apperr.NotFound("user", email)
	}
	return u, nil
}

// List returns every user ordered by email
func (s *userServiceImpl) List(ctx context.Context) ([]*entity.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("Failed to list users", "error", err)
		return nil, apperr.Internal(err, "failed to list users")
	}
	if users == nil {
		users = []*entity.User{}
	}
	return users, nil
}

// Delete removes a user or returns NotFound
func (s *userServiceImpl) Delete(ctx context.Context, email string) error {
	if _, err := s.Get(ctx, email); err != nil {
		return err
	}
	email, _ = normalizeEmail(email)
	if err := s.repo.Delete(ctx, email); err != nil {
		s.logger.Error("Failed to delete user", "error", err, "email", email)
		return apperr.Internal(err, "failed to delete user %s", email)
	}
	s.logger.Info("User deleted", "email", email)
	return nil
}
