package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/spec-kit/ticket-premerge/pkg/util/errorutil"
)

// DevJWTSecret signs tokens when AUTH_JWT_SECRET is unset. ValidateAuth
// rejects it outside development.
const DevJWTSecret = "dev-secret"

// maxTagAttempts bounds TAG_MAX_ATTEMPTS so backoff stays within sane waits.
const maxTagAttempts = 20

// Config aggregates runtime configuration for the scanner.
type Config struct {
	App          AppConfig
	Zendesk      ZendeskConfig
	Dedup        DedupConfig
	Tagging      TaggingConfig
	Report       ReportConfig
	Schedule     ScheduleConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// ZendeskConfig holds API credentials and client limits.
type ZendeskConfig struct {
	Subdomain         string
	Email             string
	APIToken          string
	BaseURL           string
	RequestsPerMinute int
	TimeoutSeconds    int
}

// DedupConfig drives fetching, grouping and validation.
type DedupConfig struct {
	WindowDays     int
	MaxPages       int
	VehicleFieldID int64
	AreaFieldID    int64
	ServiceArea    string
	Timezone       string
	SearchFilters  []string
	RulesFile      string
}

// TaggingConfig drives the tag marker.
type TaggingConfig struct {
	Tags              []string
	MaxAttempts       int
	BackoffBase       time.Duration
	MaxBackoff        time.Duration
	InterRequestDelay time.Duration
}

// ReportConfig locates the JSON report file.
type ReportConfig struct {
	Dir  string
	File string
}

// ScheduleConfig controls the daily trigger in serve mode.
type ScheduleConfig struct {
	Enabled bool
	DailyAt string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	RunLockTTL time.Duration
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines operator token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig holds the run notification endpoint.
type NotificationConfig struct {
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	vehicleField, err := getEnvAsInt64("DEDUP_VEHICLE_FIELD_ID")
	if err != nil {
		return nil, err
	}
	areaField, err := getEnvAsInt64("DEDUP_AREA_FIELD_ID")
	if err != nil {
		return nil, err
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-premerge"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Zendesk: ZendeskConfig{
			Subdomain:         os.Getenv("ZENDESK_SUBDOMAIN"),
			Email:             os.Getenv("ZENDESK_EMAIL"),
			APIToken:          os.Getenv("ZENDESK_API_TOKEN"),
			BaseURL:           os.Getenv("ZENDESK_BASE_URL"),
			RequestsPerMinute: getEnvAsInt("ZENDESK_REQUESTS_PER_MINUTE", 400),
			TimeoutSeconds:    getEnvAsInt("ZENDESK_TIMEOUT_SECONDS", 30),
		},
		Dedup: DedupConfig{
			WindowDays:     getEnvAsInt("DEDUP_WINDOW_DAYS", 30),
			MaxPages:       getEnvAsInt("DEDUP_MAX_PAGES", 10),
			VehicleFieldID: vehicleField,
			AreaFieldID:    areaField,
			ServiceArea:    getEnv("DEDUP_SERVICE_AREA", "posventa"),
			Timezone:       getEnv("DEDUP_TIMEZONE", "UTC"),
			SearchFilters:  getEnvAsList("DEDUP_SEARCH_FILTERS", nil),
			RulesFile:      os.Getenv("DEDUP_RULES_FILE"),
		},
		Tagging: TaggingConfig{
			Tags:              getEnvAsList("TAG_NAMES", []string{"pre_merge_vin", "merge_validado"}),
			MaxAttempts:       getEnvAsInt("TAG_MAX_ATTEMPTS", 5),
			BackoffBase:       getEnvAsDuration("TAG_BACKOFF_BASE", time.Second),
			MaxBackoff:        getEnvAsDuration("TAG_MAX_BACKOFF", time.Minute),
			InterRequestDelay: getEnvAsDuration("TAG_INTER_REQUEST_DELAY", 200*time.Millisecond),
		},
		Report: ReportConfig{
			Dir:  getEnv("REPORT_DIR", "."),
			File: getEnv("REPORT_FILE", "pre_merge_candidates.json"),
		},
		Schedule: ScheduleConfig{
			Enabled: getEnvAsBool("SCHEDULE_ENABLED", true),
			DailyAt: getEnv("SCHEDULE_DAILY_AT", "02:00"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:       os.Getenv("REDIS_ADDR"),
			Password:   os.Getenv("REDIS_PASSWORD"),
			DB:         redisDB,
			RunLockTTL: getEnvAsDuration("RUN_LOCK_TTL", time.Hour),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", DevJWTSecret),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
}

// Validate reports missing credentials and out-of-range values. It runs
// before any request is made.
func (c *Config) Validate() error {
	var problems []string
	if c.Zendesk.Subdomain == "" && c.Zendesk.BaseURL == "" {
		problems = append(problems, "ZENDESK_SUBDOMAIN or ZENDESK_BASE_URL is required")
	}
	if c.Zendesk.Email == "" {
		problems = append(problems, "ZENDESK_EMAIL is required")
	}
	if c.Zendesk.APIToken == "" {
		problems = append(problems, "ZENDESK_API_TOKEN is required")
	}
	if c.Dedup.VehicleFieldID <= 0 {
		problems = append(problems, "DEDUP_VEHICLE_FIELD_ID is required")
	}
	if c.Dedup.AreaFieldID <= 0 {
		problems = append(problems, "DEDUP_AREA_FIELD_ID is required")
	}
	if c.Dedup.WindowDays < 1 {
		problems = append(problems, "DEDUP_WINDOW_DAYS must be at least 1")
	}
	if c.Dedup.MaxPages < 1 {
		problems = append(problems, "DEDUP_MAX_PAGES must be at least 1")
	}
	if _, err := c.Dedup.Location(); err != nil {
		problems = append(problems, fmt.Sprintf("DEDUP_TIMEZONE: %v", err))
	}
	if len(c.Tagging.Tags) == 0 {
		problems = append(problems, "TAG_NAMES must name at least one tag")
	}
	if c.Tagging.MaxAttempts < 1 || c.Tagging.MaxAttempts > maxTagAttempts {
		problems = append(problems, fmt.Sprintf("TAG_MAX_ATTEMPTS must be between 1 and %d", maxTagAttempts))
	}
	if c.Tagging.MaxBackoff <= 0 || c.Tagging.MaxBackoff < c.Tagging.BackoffBase {
		problems = append(problems, "TAG_MAX_BACKOFF must be positive and at least TAG_BACKOFF_BASE")
	}
	if c.Schedule.Enabled {
		if _, _, err := c.Schedule.Clock(); err != nil {
			problems = append(problems, fmt.Sprintf("SCHEDULE_DAILY_AT: %v", err))
		}
	}

	if len(problems) > 0 {
		return errorutil.NewConfigurationError(strings.Join(problems, "; "), map[string]any{"problems": problems})
	}
	return nil
}

// ValidateAuth checks the token signing secret. The commands that issue or
// verify tokens call it; a plain scan never does.
func (c *Config) ValidateAuth() error {
	if problem := c.authProblem(); problem != "" {
		return errorutil.NewConfigurationError(problem, map[string]any{"problems": []string{problem}})
	}
	return nil
}

// authProblem rejects a missing or well-known signing secret outside
// development, since an operator token can tag production tickets.
func (c *Config) authProblem() string {
	if c.App.IsDevelopment() {
		return ""
	}
	if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == DevJWTSecret {
		return fmt.Sprintf("AUTH_JWT_SECRET must be set to a private value when APP_ENV is %q", c.App.Env)
	}
	return ""
}

// IsDevelopment reports whether APP_ENV names a local environment.
func (a AppConfig) IsDevelopment() bool {
	switch strings.ToLower(a.Env) {
	case "development", "dev", "local", "test":
		return true
	}
	return false
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the HTTP client timeout for API calls.
func (z ZendeskConfig) Timeout() time.Duration {
	if z.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(z.TimeoutSeconds) * time.Second
}

// Location resolves the day bucket timezone.
func (d DedupConfig) Location() (*time.Location, error) {
	if d.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(d.Timezone)
}

// Clock parses DailyAt as HH:MM.
func (s ScheduleConfig) Clock() (hour, minute int, err error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(s.DailyAt))
	if err != nil {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s.DailyAt)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvAsInt64 parses a custom field id. Unset yields zero; garbage is an
// error since a wrong field id silently disables grouping.
func getEnvAsInt64(key string) (int64, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var items []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
