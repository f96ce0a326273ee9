package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-premerge/pkg/util/errorutil"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("ZENDESK_SUBDOMAIN", "acme")
	t.Setenv("ZENDESK_EMAIL", "ops@acme.test")
	t.Setenv("ZENDESK_API_TOKEN", "secret")
	t.Setenv("DEDUP_VEHICLE_FIELD_ID", "360001")
	t.Setenv("DEDUP_AREA_FIELD_ID", "360002")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 30, cfg.Dedup.WindowDays)
	assert.Equal(t, 10, cfg.Dedup.MaxPages)
	assert.Equal(t, int64(360001), cfg.Dedup.VehicleFieldID)
	assert.Equal(t, "posventa", cfg.Dedup.ServiceArea)
	assert.Equal(t, []string{"pre_merge_vin", "merge_validado"}, cfg.Tagging.Tags)
	assert.Equal(t, 5, cfg.Tagging.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Tagging.BackoffBase)
	assert.Equal(t, 200*time.Millisecond, cfg.Tagging.InterRequestDelay)
	assert.Equal(t, 400, cfg.Zendesk.RequestsPerMinute)
	assert.Equal(t, "pre_merge_candidates.json", cfg.Report.File)
	assert.Equal(t, time.Hour, cfg.Redis.RunLockTTL)
	assert.Equal(t, time.Minute, cfg.Tagging.MaxBackoff)

	loc, err := cfg.Dedup.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	hour, minute, err := cfg.Schedule.Clock()
	require.NoError(t, err)
	assert.Equal(t, 2, hour)
	assert.Equal(t, 0, minute)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DEDUP_SEARCH_FILTERS", "-tags:merge_validado, status<solved ,")
	t.Setenv("TAG_NAMES", "dup_candidate")
	t.Setenv("TAG_BACKOFF_BASE", "250ms")
	t.Setenv("DEDUP_TIMEZONE", "America/Santiago")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"-tags:merge_validado", "status<solved"}, cfg.Dedup.SearchFilters)
	assert.Equal(t, []string{"dup_candidate"}, cfg.Tagging.Tags)
	assert.Equal(t, 250*time.Millisecond, cfg.Tagging.BackoffBase)
	assert.Equal(t, "America/Santiago", cfg.Dedup.Timezone)
}

func TestLoad_InvalidFieldID(t *testing.T) {
	setRequired(t)
	t.Setenv("DEDUP_VEHICLE_FIELD_ID", "vin")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEDUP_VEHICLE_FIELD_ID")
}

func TestValidate_MissingCredentials(t *testing.T) {
	setRequired(t)
	t.Setenv("ZENDESK_API_TOKEN", "")
	t.Setenv("DEDUP_AREA_FIELD_ID", "")
	t.Setenv("SCHEDULE_DAILY_AT", "2am")

	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeConfigurationInvalid))
	assert.Contains(t, err.Error(), "ZENDESK_API_TOKEN is required")
	assert.Contains(t, err.Error(), "DEDUP_AREA_FIELD_ID is required")
	assert.Contains(t, err.Error(), "SCHEDULE_DAILY_AT")
}

func TestValidate_JWTSecretOutsideDevelopment(t *testing.T) {
	tests := []struct {
		name   string
		env    string
		secret string
		ok     bool
	}{
		{"production without secret", "production", "", false},
		{"production with default secret", "production", DevJWTSecret, false},
		{"production with private secret", "production", "s3cr3t-from-vault", true},
		{"development keeps default", "development", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv("APP_ENV", tt.env)
			t.Setenv("AUTH_JWT_SECRET", tt.secret)

			cfg, err := Load()
			require.NoError(t, err)
			require.NoError(t, cfg.Validate())

			err = cfg.ValidateAuth()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errorutil.HasCode(err, errorutil.CodeConfigurationInvalid))
			assert.Contains(t, err.Error(), "AUTH_JWT_SECRET")
		})
	}
}

func TestValidate_TagRetryBounds(t *testing.T) {
	setRequired(t)
	t.Setenv("TAG_MAX_ATTEMPTS", "40")
	t.Setenv("TAG_BACKOFF_BASE", "2s")
	t.Setenv("TAG_MAX_BACKOFF", "1s")

	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TAG_MAX_ATTEMPTS must be between 1 and 20")
	assert.Contains(t, err.Error(), "TAG_MAX_BACKOFF")
}
