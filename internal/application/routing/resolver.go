// Package routing selects the approver chain for a submitted justification.
package routing

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/domain/entity"
)

// Result is the outcome of resolving a route. Rule is nil when nothing matched.
type Result struct {
	Rule      *entity.RoutingRule
	Approvers []string
	Tier      string
}

// Resolver picks the first routing rule that matches a submission.
type Resolver interface {
	Resolve(ctx context.Context, department, typeCode string, spend *float64) (*Result, error)
}

// Tier names, most specific first
const (
	TierDepartmentAndType = "department+type"
	TierType              = "type"
	TierDepartment        = "department"
	TierDefault           = "default"
)

type tier struct {
	name   string
	filter port.RuleFilter
}

type resolverImpl struct {
	rules port.RoutingRuleRepository
}

// NewResolver creates a resolver backed by the rule store
func NewResolver(rules port.RoutingRuleRepository) Resolver {
	return &resolverImpl{rules: rules}
}

// Resolve walks the filter tiers in order and returns the approvers of the first
// rule whose spend threshold is met. An absent estimate counts as zero.
func (r *resolverImpl) Resolve(ctx context.Context, department, typeCode string, spend *float64) (*Result, error) {
	amount := 0.0
	if spend != nil {
		amount = *spend
	}

	for _, t := range tiers(department, typeCode) {
		candidates, err := r.rules.Find(ctx, t.filter)
		if err != nil {
			return nil, fmt.Errorf("failed to find rules for tier %s: %w", t.name, err)
		}

		for _, rule := range candidates {
			if rule.AcceptsSpend(amount) {
				return &Result{
					Rule:      rule,
					Approvers: CleanApprovers(rule.ApproverEmails),
					Tier:      t.name,
				}, nil
			}
		}
	}

	return &Result{Approvers: []string{}}, nil
}

// tiers builds the candidate filters. A tier is skipped when a field it needs is empty.
func tiers(department, typeCode string) []tier {
	out := make([]tier, 0, 4)
	if department != "" && typeCode != "" {
		out = append(out, tier{TierDepartmentAndType, port.RuleFilter{Department: &department, TypeCode: &typeCode}})
	}
	if typeCode != "" {
		out = append(out, tier{TierType, port.RuleFilter{TypeCode: &typeCode}})
	}
	if department != "" {
		out = append(out, tier{TierDepartment, port.RuleFilter{Department: &department}})
	}
	return append(out, tier{TierDefault, port.RuleFilter{}})
}

// CleanApprovers trims each address and drops blanks, keeping order.
func CleanApprovers(emails []string) []string {
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}
