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

// JustificationTypeRepository implements port.JustificationTypeRepository
type JustificationTypeRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewJustificationTypeRepository creates a new justification type repository
func NewJustificationTypeRepository(db *sqlite.DB) port.JustificationTypeRepository {
	return &JustificationTypeRepository{
		db:     db,
		logger: db.Logger(),
	}
}

// Create inserts a type. A taken code yields port.ErrDuplicate.
func (r *JustificationTypeRepository) Create(ctx context.Context, t *entity.JustificationType) error {
	fields, err := marshalJSON(t.DynamicFields)
	if err != nil {
		return err
	}

	query := `INSERT INTO justification_types (code, name, dynamic_fields, created_at) VALUES (?, ?, ?, ?)`
	_, err = r.db.Executor(ctx).ExecContext(ctx, query, t.Code, t.Name, fields, t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return port.ErrDuplicate
		}
		r.logger.Error("Failed to create justification type", zap.String("code", t.Code), zap.Error(err))
		return fmt.Errorf("failed to create justification type: %w", err)
	}
	return nil
}

// GetByCode returns the type or (nil, nil) when absent
func (r *JustificationTypeRepository) GetByCode(ctx context.Context, code string) (*entity.JustificationType, error) {
	query := `SELECT code, name, dynamic_fields, created_at FROM justification_types WHERE code = ?`

	t, err := scanType(r.db.Executor(ctx).QueryRowContext(ctx, query, code))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get justification type", zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("failed to get justification type: %w", err)
	}
	return t, nil
}

// List returns every type ordered by code
func (r *JustificationTypeRepository) List(ctx context.Context) ([]*entity.JustificationType, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, `SELECT code, name, dynamic_fields, created_at FROM justification_types ORDER BY code ASC`)
	if err != nil {
		r.logger.Error("Failed to list justification types", zap.Error(err))
		return nil, fmt.Errorf("failed to list justification types: %w", err)
	}
	defer rows.Close()

	var out []*entity.JustificationType
	for rows.Next() {
		t, err := scanType(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan justification type: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate justification types: %w", err)
	}
	return out, nil
}

func scanType(row rowScanner) (*entity.JustificationType, error) {
	var (
		t      entity.JustificationType
		fields string
	)
	if err := row.Scan(&t.Code, &t.Name, &fields, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.DynamicFields = []entity.DynamicField{}
	if err := unmarshalJSON(fields, &t.DynamicFields); err != nil {
		return nil, err
	}
	return &t, nil
}

var _ port.JustificationTypeRepository = (*JustificationTypeRepository)(nil)
