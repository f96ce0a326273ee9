package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-premerge/internal/domain"
)

func TestPolicy_ChainKeepsFixedOrder(t *testing.T) {
	policy := Policy{domain.KeyTypeEmail: {RuleParentCandidacy, RuleSize, RuleActiveCount}}
	assert.Equal(t, []RuleName{RuleSize, RuleActiveCount, RuleParentCandidacy}, policy.Chain(domain.KeyTypeEmail))
	assert.Empty(t, policy.Chain(domain.KeyTypePhone))
}

func TestParsePolicy(t *testing.T) {
	policy, err := ParsePolicy([]byte(`
rules:
  vehicle_id: [size, single_requester, contact_present, active_count, parent_candidacy]
  Phone: [size]
`))
	require.NoError(t, err)

	assert.True(t, policy.Enabled(domain.KeyTypeVehicleID, RuleContactPresent))
	assert.False(t, policy.Enabled(domain.KeyTypeVehicleID, RuleContactConsistency))
	assert.Equal(t, []RuleName{RuleSize}, policy.Chain(domain.KeyTypePhone))
	assert.Equal(t, DefaultPolicy()[domain.KeyTypeEmail], policy[domain.KeyTypeEmail])
}

func TestParsePolicy_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown key type", "rules:\n  plate: [size]\n", `unknown key type "plate"`},
		{"unknown rule", "rules:\n  email: [size, vibes]\n", `unknown rule "vibes"`},
		{"bad yaml", "rules: [", "parsing rules YAML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePolicy([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadPolicy(t *testing.T) {
	policy, err := LoadPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicy(), policy)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  email: [size]\n"), 0o600))
	policy, err = LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, []RuleName{RuleSize}, policy[domain.KeyTypeEmail])

	_, err = LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
