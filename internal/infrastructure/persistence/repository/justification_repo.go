package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/entity"
	"github.com/garyjia/justifi/internal/infrastructure/persistence/sqlite"
)

const justificationColumns = `id, title, type_code, department, cost_centre, requester_email,
	urgency, description, business_impact, alternatives, cost_estimate, required_date,
	dynamic_values, attachments, status, version, created_at, updated_at`

// JustificationRepository implements port.JustificationRepository
type JustificationRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewJustificationRepository creates a new justification repository
func NewJustificationRepository(db *sqlite.DB) port.JustificationRepository {
	return &JustificationRepository{
		db:     db,
		logger: db.Logger(),
	}
}

// Create inserts a justification
func (r *JustificationRepository) Create(ctx context.Context, j *entity.Justification) error {
	dynamicValues, err := marshalJSON(j.DynamicValues)
	if err != nil {
		return err
	}
	attachments, err := marshalJSON(j.Attachments)
	if err != nil {
		return err
	}

	query := `INSERT INTO justifications (` + justificationColumns + `)
		VALUES (` + placeholders(18) + `)`

	_, err = r.db.Executor(ctx).ExecContext(ctx, query,
		j.ID,
		j.Title,
		j.TypeCode,
		j.Department,
		j.CostCentre,
		j.RequesterEmail,
		j.Urgency,
		j.Description,
		j.BusinessImpact,
		j.Alternatives,
		nullFloat(j.CostEstimate),
		j.RequiredDate,
		dynamicValues,
		attachments,
		j.Status,
		j.Version,
		j.CreatedAt,
		j.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create justification",
			zap.String("justification_id", j.ID.String()),
			zap.Error(err))
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create justification: %w", port.ErrDuplicate)
		}
		return fmt.Errorf("failed to create justification: %w", err)
	}

	return nil
}

// GetByID returns the justification or (nil, nil) when absent
func (r *JustificationRepository) GetByID(ctx context.Context, id entity.JustificationID) (*entity.Justification, error) {
	query := `SELECT ` + justificationColumns + ` FROM justifications WHERE id = ?`

	j, err := scanJustification(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get justification",
			zap.String("justification_id", id.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get justification: %w", err)
	}
	return j, nil
}

// List returns matching justifications, newest first
func (r *JustificationRepository) List(ctx context.Context, filter port.JustificationFilter) ([]*entity.Justification, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.RequesterEmail != "" {
		where = append(where, "requester_email = ?")
		args = append(args, filter.RequesterEmail)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + justificationColumns + ` FROM justifications`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list justifications", zap.Error(err))
		return nil, fmt.Errorf("failed to list justifications: %w", err)
	}
	defer rows.Close()

	var out []*entity.Justification
	for rows.Next() {
		j, err := scanJustification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan justification: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate justifications: %w", err)
	}
	return out, nil
}

// UpdateStatus is a compare-and-set on (id, version)
func (r *JustificationRepository) UpdateStatus(ctx context.Context, id entity.JustificationID, expectedVersion int64, status entity.JustificationStatus) error {
	query := `
		UPDATE justifications
		SET status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, status, time.Now().UTC(), id, expectedVersion)
	if err != nil {
		r.logger.Error("Failed to update justification status",
			zap.String("justification_id", id.String()),
			zap.String("status", string(status)),
			zap.Error(err))
		return fmt.Errorf("failed to update justification status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return port.ErrVersionConflict
	}
	return nil
}

func scanJustification(row rowScanner) (*entity.Justification, error) {
	var (
		j             entity.Justification
		costEstimate  sql.NullFloat64
		dynamicValues string
		attachments   string
	)

	err := row.Scan(
		&j.ID,
		&j.Title,
		&j.TypeCode,
		&j.Department,
		&j.CostCentre,
		&j.RequesterEmail,
		&j.Urgency,
		&j.Description,
		&j.BusinessImpact,
		&j.Alternatives,
		&costEstimate,
		&j.RequiredDate,
		&dynamicValues,
		&attachments,
		&j.Status,
		&j.Version,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	j.CostEstimate = floatPtr(costEstimate)
	j.DynamicValues = map[string]any{}
	if err := unmarshalJSON(dynamicValues, &j.DynamicValues); err != nil {
		return nil, err
	}
	j.Attachments = []entity.Attachment{}
	if err := unmarshalJSON(attachments, &j.Attachments); err != nil {
		return nil, err
	}
	if j.DynamicValues == nil {
		j.DynamicValues = map[string]any{}
	}
	if j.Attachments == nil {
		j.Attachments = []entity.Attachment{}
	}
	return &j, nil
}

var _ port.JustificationRepository = (*JustificationRepository)(nil)
