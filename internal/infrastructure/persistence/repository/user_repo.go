package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/entity"
	"github.com/garyjia/justifi/internal/infrastructure/persistence/sqlite"
)

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlite.DB) port.UserRepository {
	return &UserRepository{
		db:     db,
		logger: db.Logger(),
	}
}

const userColumns = `email, name, department, role, created_at, updated_at`

// Upsert inserts the user or replaces the one stored under u.Email. The
// original created_at is kept on update.
func (r *UserRepository) Upsert(ctx context.Context, u *entity.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			name = excluded.name,
			department = excluded.department,
			role = excluded.role,
			updated_at = excluded.updated_at
	`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		u.Email,
		u.Name,
		nullString(u.Department),
		u.Role,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to save user", zap.String("email", u.Email), zap.Error(err))
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// GetByEmail returns the user or (nil, nil) when absent
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`

	u, err := scanUser(r.db.Executor(ctx).QueryRowContext(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// List returns every user ordered by email
func (r *UserRepository) List(ctx context.Context) ([]*entity.User, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY email ASC`)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var out []*entity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return out, nil
}

// Delete removes the user stored under email
func (r *UserRepository) Delete(ctx context.Context, email string) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM users WHERE email = ?`, email)
	if err != nil {
		r.logger.Error("Failed to delete user", zap.String("email", email), zap.Error(err))
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// Count returns the number of directory entries
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.Executor(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		r.logger.Error("Failed to count users", zap.Error(err))
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

func scanUser(row rowScanner) (*entity.User, error) {
	var (
		u          entity.User
		department sql.NullString
	)
	if err := row.Scan(&u.Email, &u.Name, &department, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Department = stringPtr(department)
	return &u, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
