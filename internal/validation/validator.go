package validation

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-premerge/internal/domain"
)

// Validator runs the rule chain over candidate groups.
type Validator struct {
	policy   Policy
	contacts ContactLookup
	criteria ParentCriteria
	logger   *zap.Logger
}

func NewValidator(policy Policy, contacts ContactLookup, criteria ParentCriteria, logger *zap.Logger) *Validator {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{policy: policy, contacts: contacts, criteria: criteria, logger: logger}
}

// Validate evaluates the enabled rules in chain order and stops at the first
// failure. The size rule is always evaluated. A group whose chain has no
// parent_candidacy rule takes its first active member (or first member) as
// parent.
func (v *Validator) Validate(ctx context.Context, group domain.CandidateGroup) domain.ValidationResult {
	e := &evaluation{ctx: ctx, group: group, contacts: v.contacts, criteria: v.criteria}

	chain := v.policy.Chain(group.Criterion.KeyType)
	if !v.policy.Enabled(group.Criterion.KeyType, RuleSize) {
		chain = append([]RuleName{RuleSize}, chain...)
	}

	for _, name := range chain {
		if reason := rules[name](e); reason != nil {
			v.logger.Debug("group rejected",
				zap.String("criterion", group.Criterion.String()),
				zap.String("rule", string(name)),
				zap.String("reason", reason.Message))
			return domain.ValidationResult{Reason: reason}
		}
	}

	parent := e.parent
	if parent == nil {
		parent = fallbackParent(group.Members)
	}
	candidates := make([]domain.Ticket, 0, len(group.Members)-1)
	for _, ticket := range group.Members {
		if ticket.ID != parent.ID {
			candidates = append(candidates, ticket)
		}
	}
	return domain.Accept(*parent, candidates)
}

func fallbackParent(members []domain.Ticket) *domain.Ticket {
	for i := range members {
		if members[i].IsActive() {
			return &members[i]
		}
	}
	return &members[0]
}
