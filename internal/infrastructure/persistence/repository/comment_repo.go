package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/entity"
	"github.com/garyjia/justifi/internal/infrastructure/persistence/sqlite"
)

// CommentRepository implements port.CommentRepository
type CommentRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *sqlite.DB) port.CommentRepository {
	return &CommentRepository{
		db:     db,
		logger: db.Logger(),
	}
}

// Create appends a comment
func (r *CommentRepository) Create(ctx context.Context, c *entity.Comment) error {
	query := `
		INSERT INTO comments (id, justification_id, author_email, message, is_internal, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		c.ID,
		c.JustificationID,
		c.AuthorEmail,
		c.Message,
		c.IsInternal,
		c.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create comment",
			zap.String("justification_id", c.JustificationID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// ListByJustification returns comments oldest first
func (r *CommentRepository) ListByJustification(ctx context.Context, id entity.JustificationID) ([]*entity.Comment, error) {
	query := `
		SELECT id, justification_id, author_email, message, is_internal, created_at
		FROM comments
		WHERE justification_id = ?
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to list comments", zap.String("justification_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var out []*entity.Comment
	for rows.Next() {
		var c entity.Comment
		if err := rows.Scan(&c.ID, &c.JustificationID, &c.AuthorEmail, &c.Message, &c.IsInternal, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}
	return out, nil
}

var _ port.CommentRepository = (*CommentRepository)(nil)
