package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/entity"
	"github.com/garyjia/justifi/internal/infrastructure/persistence/sqlite"
)

const taskColumns = `id, justification_id, approver_email, step_index, status,
	more_info_reason, decision_comment, acted_by, created_at, updated_at`

// ApprovalTaskRepository implements port.ApprovalTaskRepository
type ApprovalTaskRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewApprovalTaskRepository creates a new approval task repository
func NewApprovalTaskRepository(db *sqlite.DB) port.ApprovalTaskRepository {
	return &ApprovalTaskRepository{
		db:     db,
		logger: db.Logger(),
	}
}

// CreateBatch inserts all tasks with one statement
func (r *ApprovalTaskRepository) CreateBatch(ctx context.Context, tasks []*entity.ApprovalTask) error {
	if len(tasks) == 0 {
		return nil
	}

	query := `INSERT INTO approval_tasks (` + taskColumns + `) VALUES `
	args := make([]interface{}, 0, len(tasks)*10)
	for i, t := range tasks {
		if i > 0 {
			query += ", "
		}
		query += "(" + placeholders(10) + ")"
		args = append(args,
			t.ID,
			t.JustificationID,
			t.ApproverEmail,
			t.StepIndex,
			t.Status,
			t.MoreInfoReason,
			t.DecisionComment,
			t.ActedBy,
			t.CreatedAt,
			t.UpdatedAt,
		)
	}

	if _, err := r.db.Executor(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to create approval tasks",
			zap.String("justification_id", tasks[0].JustificationID.String()),
			zap.Int("count", len(tasks)),
			zap.Error(err))
		return fmt.Errorf("failed to create approval tasks: %w", err)
	}
	return nil
}

// GetByID returns the task or (nil, nil) when absent
func (r *ApprovalTaskRepository) GetByID(ctx context.Context, id entity.TaskID) (*entity.ApprovalTask, error) {
	query := `SELECT ` + taskColumns + ` FROM approval_tasks WHERE id = ?`

	t, err := scanTask(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval task",
			zap.String("task_id", id.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get approval task: %w", err)
	}
	return t, nil
}

// ListByJustification returns the justification's tasks by step index
func (r *ApprovalTaskRepository) ListByJustification(ctx context.Context, id entity.JustificationID) ([]*entity.ApprovalTask, error) {
	query := `SELECT ` + taskColumns + ` FROM approval_tasks WHERE justification_id = ? ORDER BY step_index ASC`
	return r.query(ctx, query, id)
}

// ListByApprover returns the approver's tasks in statuses, newest first
func (r *ApprovalTaskRepository) ListByApprover(ctx context.Context, approverEmail string, statuses []entity.TaskStatus) ([]*entity.ApprovalTask, error) {
	query := `SELECT ` + taskColumns + ` FROM approval_tasks WHERE approver_email = ?`
	args := []interface{}{approverEmail}
	if len(statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(statuses)) + `)`
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	query += ` ORDER BY created_at DESC, id DESC`
	return r.query(ctx, query, args...)
}

// Transition applies change while the task is still in status from
func (r *ApprovalTaskRepository) Transition(ctx context.Context, id entity.TaskID, from entity.TaskStatus, change port.TaskChange) error {
	query := `
		UPDATE approval_tasks
		SET status = ?,
			more_info_reason = COALESCE(?, more_info_reason),
			decision_comment = COALESCE(?, decision_comment),
			acted_by = ?,
			updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		change.Status,
		nullString(change.MoreInfoReason),
		nullString(change.DecisionComment),
		change.ActedBy,
		time.Now().UTC(),
		id,
		from,
	)
	if err != nil {
		r.logger.Error("Failed to transition approval task",
			zap.String("task_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(change.Status)),
			zap.Error(err))
		return fmt.Errorf("failed to transition approval task: %w", err)
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

// TransitionWhere moves every task of the justification in status from to status to
func (r *ApprovalTaskRepository) TransitionWhere(ctx context.Context, id entity.JustificationID, from, to entity.TaskStatus) (int64, error) {
	query := `UPDATE approval_tasks SET status = ?, updated_at = ? WHERE justification_id = ? AND status = ?`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		r.logger.Error("Failed to transition approval tasks",
			zap.String("justification_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.Error(err))
		return 0, fmt.Errorf("failed to transition approval tasks: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected, nil
}

// CountNotInStatus counts the justification's tasks whose status differs from status
func (r *ApprovalTaskRepository) CountNotInStatus(ctx context.Context, id entity.JustificationID, status entity.TaskStatus) (int, error) {
	query := `SELECT COUNT(*) FROM approval_tasks WHERE justification_id = ? AND status <> ?`

	var count int
	if err := r.db.Executor(ctx).QueryRowContext(ctx, query, id, status).Scan(&count); err != nil {
		r.logger.Error("Failed to count approval tasks",
			zap.String("justification_id", id.String()),
			zap.Error(err))
		return 0, fmt.Errorf("failed to count approval tasks: %w", err)
	}
	return count, nil
}

func (r *ApprovalTaskRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.ApprovalTask, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query approval tasks", zap.Error(err))
		return nil, fmt.Errorf("failed to query approval tasks: %w", err)
	}
	defer rows.Close()

	var out []*entity.ApprovalTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate approval tasks: %w", err)
	}
	return out, nil
}

func scanTask(row rowScanner) (*entity.ApprovalTask, error) {
	var t entity.ApprovalTask
	err := row.Scan(
		&t.ID,
		&t.JustificationID,
		&t.ApproverEmail,
		&t.StepIndex,
		&t.Status,
		&t.MoreInfoReason,
		&t.DecisionComment,
		&t.ActedBy,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

var _ port.ApprovalTaskRepository = (*ApprovalTaskRepository)(nil)
