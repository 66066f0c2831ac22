package app

import (
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ConfigPath is the toml configuration file path
var ConfigPath = "config"

// ConfigName is the toml configuration file name
var ConfigName = "engage-engine"

// EnvPrefix is the standard environment variable prefix
var EnvPrefix = "ENGAGE"

// ConfigKey is one allowed configuration key with its default value
type ConfigKey struct {
	Name         string
	DefaultValue interface{}
	Description  string
}

// AllowedConfigKey list every allowed configuration key
var AllowedConfigKey = []ConfigKey{
	{Name: "INSTANCE_NAME", DefaultValue: "engage", Description: "Instance name"},
	{Name: "LOGGER_PRODUCTION", DefaultValue: true, Description: "Enable or disable production log"},

	{Name: "SERVER_PORT", DefaultValue: 9000, Description: "HTTP server port"},
	{Name: "API_ENABLE_CORS", DefaultValue: true, Description: "Run the API with CORS enabled"},
	{Name: "HTTP_SERVER_API_ENABLE_VERBOSE_ERROR", DefaultValue: false, Description: "Run the API with verbose error"},

	{Name: "POSTGRESQL_HOSTNAME", DefaultValue: "localhost", Description: "PostgreSQL hostname"},
	{Name: "POSTGRESQL_PORT", DefaultValue: "5432", Description: "PostgreSQL port"},
	{Name: "POSTGRESQL_DBNAME", DefaultValue: "engage", Description: "PostgreSQL database name"},
	{Name: "POSTGRESQL_USERNAME", DefaultValue: "postgres", Description: "PostgreSQL user"},
	{Name: "POSTGRESQL_PASSWORD", DefaultValue: "postgres", Description: "PostgreSQL password"},
	{Name: "POSTGRESQL_CONN_POOL_MAX_OPEN", DefaultValue: 6, Description: "PostgreSQL connection pool max open"},
	{Name: "POSTGRESQL_CONN_POOL_MAX_IDLE", DefaultValue: 3, Description: "PostgreSQL connection pool max idle"},
	{Name: "POSTGRESQL_CONN_MAX_LIFETIME", DefaultValue: "0", Description: "PostgreSQL connection max lifetime"},
	{Name: "POSTGRESQL_MIGRATION_ON_STARTUP", DefaultValue: true, Description: "Run migrations on startup"},

	{Name: "ENABLE_CRONS_ON_START", DefaultValue: true, Description: "Enable crons on startup"},
	{Name: "DISPATCH_CRON", DefaultValue: "@every 1m", Description: "Dispatch pass cron expression"},
	{Name: "DISPATCH_BATCH_SIZE", DefaultValue: 200, Description: "Maximum unprocessed interactions loaded per dispatch pass"},
	{Name: "DISPATCH_SCOPE", DefaultValue: "", Description: "Scope processed by the cron dispatch job (empty for every scope)"},

	{Name: "MAX_GLOBAL_CONCURRENCY", DefaultValue: 8, Description: "Maximum concurrent evaluations across all rules"},
	{Name: "PER_RULE_CONCURRENCY", DefaultValue: 2, Description: "Maximum concurrent evaluations per rule"},
	{Name: "QUOTA_PER_ROUND", DefaultValue: 10, Description: "Interactions granted to each rule per scheduling round"},

	{Name: "CIRCUIT_FAILURE_THRESHOLD", DefaultValue: 5, Description: "Consecutive failures before a rule circuit opens"},
	{Name: "CIRCUIT_RECOVERY_TIME", DefaultValue: "60s", Description: "Time an open rule circuit waits before probing"},
	{Name: "CIRCUIT_HALF_OPEN_MAX_CALLS", DefaultValue: 3, Description: "Probe calls allowed while a rule circuit is half-open"},

	{Name: "PREFETCH_CHUNK_SIZE", DefaultValue: 50, Description: "Metadata prefetch chunk size"},
	{Name: "DEDUP_TOKEN_PREFIX", DefaultValue: 12, Description: "Normalized tokens kept for the similarity key"},
	{Name: "DEDUP_PROMPT_PREFIX", DefaultValue: 120, Description: "Prompt characters kept for the similarity key"},

	{Name: "EVALUATOR_TIMEOUT", DefaultValue: "30s", Description: "Timeout of a single remote condition evaluation"},
	{Name: "AI_GATEWAY_URL", DefaultValue: "http://localhost:9010", Description: "AI gateway base URL (condition evaluation, reply drafting)"},
	{Name: "AI_GATEWAY_API_KEY", DefaultValue: "", Description: "AI gateway API key"},
	{Name: "PLATFORM_GATEWAY_URL", DefaultValue: "http://localhost:9020", Description: "Platform gateway base URL (moderation, replies, metadata)"},
	{Name: "PLATFORM_GATEWAY_API_KEY", DefaultValue: "", Description: "Platform gateway API key"},
	{Name: "GATEWAY_TIMEOUT", DefaultValue: "30s", Description: "HTTP timeout of gateway calls"},
}

// InitConfiguration loads the configuration file, the environment overrides
// and the defaults of every allowed key
func InitConfiguration() {
	for _, key := range AllowedConfigKey {
		viper.SetDefault(key.Name, key.DefaultValue)
	}

	viper.SetConfigName(ConfigName)
	viper.AddConfigPath(ConfigPath)
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		zap.L().Warn("No configuration file found, using defaults and environment", zap.Error(err))
	}
}
