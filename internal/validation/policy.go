package validation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/ticket-premerge/internal/domain"
)

// Policy declares which rules apply to each group key type.
type Policy map[domain.KeyType][]RuleName

// DefaultPolicy checks requester identity only for vehicle id groups, since
// email and phone groups are keyed on the requester's contact already.
func DefaultPolicy() Policy {
	return Policy{
		domain.KeyTypeVehicleID: {RuleSize, RuleSingleRequester, RuleContactConsistency, RuleActiveCount, RuleParentCandidacy},
		domain.KeyTypeEmail:     {RuleSize, RuleContactConsistency, RuleActiveCount, RuleParentCandidacy},
		domain.KeyTypePhone:     {RuleSize, RuleContactConsistency, RuleActiveCount, RuleParentCandidacy},
	}
}

// Enabled reports whether rule applies to key type kt.
func (p Policy) Enabled(kt domain.KeyType, rule RuleName) bool {
	for _, name := range p[kt] {
		if name == rule {
			return true
		}
	}
	return false
}

// Chain returns the enabled rules for kt in chain order.
func (p Policy) Chain(kt domain.KeyType) []RuleName {
	var chain []RuleName
	for _, name := range ChainOrder {
		if p.Enabled(kt, name) {
			chain = append(chain, name)
		}
	}
	return chain
}

// policyFile is the YAML layout of a rules file:
//
//	rules:
//	  vehicle_id: [size, single_requester, active_count, parent_candidacy]
//	  email: [size, contact_consistency, active_count, parent_candidacy]
type policyFile struct {
	Rules map[string][]string `yaml:"rules"`
}

// ParsePolicy decodes a YAML rules document. Key types missing from the
// document keep their default rules.
func ParsePolicy(data []byte) (Policy, error) {
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing rules YAML: %w", err)
	}

	policy := DefaultPolicy()
	for rawKey, names := range file.Rules {
		kt, ok := domain.ParseKeyType(rawKey)
		if !ok {
			return nil, fmt.Errorf("unknown key type %q", rawKey)
		}
		chain := make([]RuleName, 0, len(names))
		for _, raw := range names {
			name := RuleName(domain.NormalizeKey(raw))
			if !knownRule(name) {
				return nil, fmt.Errorf("unknown rule %q for key type %s", raw, kt)
			}
			chain = append(chain, name)
		}
		policy[kt] = chain
	}
	return policy, nil
}

// LoadPolicy reads a rules file. An empty path yields the default policy.
func LoadPolicy(path string) (Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	return ParsePolicy(data)
}
