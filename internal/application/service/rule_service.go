package service

import (
	"context"
	"strings"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/application/routing"
	"github.com/garyjia/justifi/internal/domain/apperr"
	"github.com/garyjia/justifi/internal/domain/entity"
	"github.com/garyjia/justifi/pkg/ids"
	"github.com/garyjia/justifi/pkg/utils"
)

// RuleInput is the editable part of a routing rule
type RuleInput struct {
	Name           string   `json:"name" yaml:"name"`
	Department     *string  `json:"department,omitempty" yaml:"department,omitempty"`
	TypeCode       *string  `json:"type_code,omitempty" yaml:"type_code,omitempty"`
	SpendThreshold *float64 `json:"spend_threshold,omitempty" yaml:"spend_threshold,omitempty"`
	ApproverEmails []string `json:"approver_emails" yaml:"approver_emails"`
}

// RuleService administers routing rules
type RuleService interface {
	Create(ctx context.Context, in RuleInput) (*entity.RoutingRule, error)
	Update(ctx context.Context, id entity.RuleID, in RuleInput) (*entity.RoutingRule, error)
	Get(ctx context.Context, id entity.RuleID) (*entity.RoutingRule, error)

	// List returns every rule sorted by name
	List(ctx context.Context) ([]*entity.RoutingRule, error)
}

type ruleServiceImpl struct {
	repo   port.RoutingRuleRepository
	users  port.UserRepository
	logger Logger
}

var _ RuleService = (*ruleServiceImpl)(nil)

// RuleServiceOption configures optional RuleService dependencies
type RuleServiceOption func(*ruleServiceImpl)

// WithUserDirectory makes Create and Update reject approvers that are not
// directory users with the approver or admin role. An empty directory
// disables the check.
func WithUserDirectory(users port.UserRepository) RuleServiceOption {
	return func(s *ruleServiceImpl) { s.users = users }
}

// NewRuleService creates a new RuleService
func NewRuleService(repo port.RoutingRuleRepository, logger Logger, opts ...RuleServiceOption) RuleService {
	s := &ruleServiceImpl{
		repo:   repo,
		logger: orNop(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// checkApprovers verifies every approver against the user directory
func (s *ruleServiceImpl) checkApprovers(ctx context.Context, emails []string) error {
	if s.users == nil || len(emails) == 0 {
		return nil
	}
	n, err := s.users.Count(ctx)
	if err != nil {
		s.logger.Error("Failed to count users", "error", err)
		return apperr.Internal(err, "failed to check approvers")
	}
	if n == 0 {
		return nil
	}

	for _, email := range emails {
		u, err := s.users.GetByEmail(ctx, strings.ToLower(email))
		if err != nil {
			s.logger.Error("Failed to look up approver", "error", err, "email", email)
			return apperr.Internal(err, "failed to check approvers")
		}
		if u == nil {
			return apperr.InvalidArgument("approver_emails: %s is not a known user", email)
		}
		if !u.CanApprove() {
			return apperr.InvalidArgument("approver_emails: %s has role %s, need %s or %s", email, u.Role, entity.RoleApprover, entity.RoleAdmin)
		}
	}
	return nil
}

// normalizeRule trims fields, turns blank optional fields into nil and drops blank approvers.
func normalizeRule(in RuleInput) (RuleInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, apperr.InvalidArgument("name is required")
	}
	in.Department = trimOptional(in.Department)
	in.TypeCode = trimOptional(in.TypeCode)
	if in.SpendThreshold != nil {
		if err := utils.ValidateAmount(*in.SpendThreshold); err != nil {
			return in, apperr.InvalidArgument("spend_threshold: %v", err)
		}
	}
	in.ApproverEmails = routing.CleanApprovers(in.ApproverEmails)
	for _, email := range in.ApproverEmails {
		if err := utils.ValidateEmail(email); err != nil {
			return in, apperr.InvalidArgument("approver_emails: %v", err)
		}
	}
	return in, nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// Create stores a new rule
func (s *ruleServiceImpl) Create(ctx context.Context, in RuleInput) (*entity.RoutingRule, error) {
	in, err := normalizeRule(in)
	if err != nil {
		return nil, err
	}
	if err := s.checkApprovers(ctx, in.ApproverEmails); err != nil {
		return nil, err
	}

	now := utcNow()
	rule := &entity.RoutingRule{
		ID:             entity.RuleID(ids.New()),
		Name:           in.Name,
		Department:     in.Department,
		TypeCode:       in.TypeCode,
		SpendThreshold: in.SpendThreshold,
		ApproverEmails: in.ApproverEmails,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, rule); err != nil {
		s.logger.Error("Failed to create rule", "error", err, "name", rule.Name)
		return nil, apperr.Internal(err, "failed to create rule")
	}

	s.logger.Info("Routing rule created", "rule_id", rule.ID, "name", rule.Name, "approver_count", len(rule.ApproverEmails))
	return rule, nil
}

// Update replaces the editable fields of an existing rule
func (s *ruleServiceImpl) Update(ctx context.Context, id entity.RuleID, in RuleInput) (*entity.RoutingRule, error) {
	in, err := normalizeRule(in)
	if err != nil {
		return nil, err
	}
	if err := s.checkApprovers(ctx, in.ApproverEmails); err != nil {
		return nil, err
	}

	rule, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	rule.Name = in.Name
	rule.Department = in.Department
	rule.TypeCode = in.TypeCode
	rule.SpendThreshold = in.SpendThreshold
	rule.ApproverEmails = in.ApproverEmails
	rule.UpdatedAt = utcNow()

	if err := s.repo.Update(ctx, rule); err != nil {
		s.logger.Error("Failed to update rule", "error", err, "rule_id", id)
		return nil, apperr.Internal(err, "failed to update rule %s", id)
	}

	s.logger.Info("Routing rule updated", "rule_id", id)
	return rule, nil
}

// Get returns a rule or NotFound
func (s *ruleServiceImpl) Get(ctx context.Context, id entity.RuleID) (*entity.RoutingRule, error) {
	rule, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("Failed to get rule", "error", err, "rule_id", id)
		return nil, apperr.Internal(err, "failed to get rule %s", id)
	}
	if rule == nil {
		return nil, apperr.NotFound("rule", id)
	}
	return rule, nil
}

// List returns all rules sorted by name
func (s *ruleServiceImpl) List(ctx context.Context) ([]*entity.RoutingRule, error) {
	rules, err := s.repo.ListByName(ctx)
	if err != nil {
		s.logger.Error("Failed to list rules", "error", err)
		return nil, apperr.Internal(err, "failed to list rules")
	}
	if rules == nil {
		rules = []*entity.RoutingRule{}
	}
	return rules, nil
}
