package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/entity"
	"github.com/garyjia/justifi/internal/infrastructure/persistence/sqlite"
)

const ruleColumns = `id, name, department, type_code, spend_threshold, approver_emails, created_at, updated_at`

// RoutingRuleRepository implements port.RoutingRuleRepository
type RoutingRuleRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewRoutingRuleRepository creates a new routing rule repository
func NewRoutingRuleRepository(db *sqlite.DB) port.RoutingRuleRepository {
	return &RoutingRuleRepository{
		db:     db,
		logger: db.Logger(),
	}
}

// Create inserts a rule
func (r *RoutingRuleRepository) Create(ctx context.Context, rule *entity.RoutingRule) error {
	approvers, err := marshalJSON(nonNilStrings(rule.ApproverEmails))
	if err != nil {
		return err
	}

	query := `INSERT INTO routing_rules (` + ruleColumns + `) VALUES (` + placeholders(8) + `)`
	_, err = r.db.Executor(ctx).ExecContext(ctx, query,
		rule.ID,
		rule.Name,
		nullString(rule.Department),
		nullString(rule.TypeCode),
		nullFloat(rule.SpendThreshold),
		approvers,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create routing rule", zap.String("name", rule.Name), zap.Error(err))
		return fmt.Errorf("failed to create routing rule: %w", err)
	}
	return nil
}

// GetByID returns the rule or (nil, nil) when absent
func (r *RoutingRuleRepository) GetByID(ctx context.Context, id entity.RuleID) (*entity.RoutingRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM routing_rules WHERE id = ?`

	rule, err := scanRule(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get routing rule", zap.String("rule_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get routing rule: %w", err)
	}
	return rule, nil
}

// Update overwrites the rule's editable fields
func (r *RoutingRuleRepository) Update(ctx context.Context, rule *entity.RoutingRule) error {
	approvers, err := marshalJSON(nonNilStrings(rule.ApproverEmails))
	if err != nil {
		return err
	}

	query := `
		UPDATE routing_rules
		SET name = ?, department = ?, type_code = ?, spend_threshold = ?, approver_emails = ?, updated_at = ?
		WHERE id = ?
	`
	_, err = r.db.Executor(ctx).ExecContext(ctx, query,
		rule.Name,
		nullString(rule.Department),
		nullString(rule.TypeCode),
		nullFloat(rule.SpendThreshold),
		approvers,
		rule.UpdatedAt,
		rule.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update routing rule", zap.String("rule_id", rule.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to update routing rule: %w", err)
	}
	return nil
}

// Find returns rules matching the filter by equality, in creation order
func (r *RoutingRuleRepository) Find(ctx context.Context, filter port.RuleFilter) ([]*entity.RoutingRule, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Department != nil {
		where = append(where, "department = ?")
		args = append(args, *filter.Department)
	}
	if filter.TypeCode != nil {
		where = append(where, "type_code = ?")
		args = append(args, *filter.TypeCode)
	}

	query := `SELECT ` + ruleColumns + ` FROM routing_rules`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at ASC, id ASC`
	return r.query(ctx, query, args...)
}

// ListByName returns every rule sorted by name
func (r *RoutingRuleRepository) ListByName(ctx context.Context) ([]*entity.RoutingRule, error) {
	return r.query(ctx, `SELECT `+ruleColumns+` FROM routing_rules ORDER BY name ASC, id ASC`)
}

func (r *RoutingRuleRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.RoutingRule, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query routing rules", zap.Error(err))
		return nil, fmt.Errorf("failed to query routing rules: %w", err)
	}
	defer rows.Close()

	var out []*entity.RoutingRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan routing rule: %w", err)
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate routing rules: %w", err)
	}
	return out, nil
}

func scanRule(row rowScanner) (*entity.RoutingRule, error) {
	var (
		rule       entity.RoutingRule
		department sql.NullString
		typeCode   sql.NullString
		threshold  sql.NullFloat64
		approvers  string
	)
	err := row.Scan(
		&rule.ID,
		&rule.Name,
		&department,
		&typeCode,
		&threshold,
		&approvers,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Department = stringPtr(department)
	rule.TypeCode = stringPtr(typeCode)
	rule.SpendThreshold = floatPtr(threshold)
	rule.ApproverEmails = []string{}
	if err := unmarshalJSON(approvers, &rule.ApproverEmails); err != nil {
		return nil, err
	}
	return &rule, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var _ port.RoutingRuleRepository = (*RoutingRuleRepository)(nil)
