// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/schedulehub/internal/app/system/inputval"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for ScheduleHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: SCHEDULEHUB_MONGO_URI, SCHEDULEHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "schedulehub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "schedulehub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "12h", Desc: "Session lifetime (e.g., 12h, 30m)"},

	{Name: "base_url", Default: "http://localhost:3000", Desc: "Public base URL of the dashboard"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_schedule", Default: "all", Desc: "Timetable event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	{Name: "cache_ttl", Default: "2m", Desc: "Lifetime of cached timetable reads"},

	// Timetable generator service
	{Name: "generator_url", Default: "", Desc: "Base URL of the timetable generator (blank disables generation)"},
	{Name: "generator_token_url", Default: "", Desc: "OAuth2 token endpoint for the generator (blank sends no credentials)"},
	{Name: "generator_client_id", Default: "", Desc: "OAuth2 client ID for the generator"},
	{Name: "generator_client_secret", Default: "", Desc: "OAuth2 client secret for the generator"},
	{Name: "generator_timeout", Default: "2m", Desc: "Per-request timeout for generator calls"},

	// Admin bootstrap
	{Name: "bootstrap_admin_login", Default: "", Desc: "Login ID of the first admin (created on startup when no admin exists)"},
	{Name: "bootstrap_admin_password", Default: "", Desc: "Password of the first admin"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// environment variables (WAFFLE_* for core, SCHEDULEHUB_* for app) and flags,
// with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "SCHEDULEHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 12*time.Hour),

		BaseURL: appValues.String("base_url"),

		AuditLogAuth:     appValues.String("audit_log_auth"),
		AuditLogAdmin:    appValues.String("audit_log_admin"),
		AuditLogSchedule: appValues.String("audit_log_schedule"),

		CacheTTL: appValues.Duration("cache_ttl", 2*time.Minute),

		GeneratorURL:          appValues.String("generator_url"),
		GeneratorTokenURL:     appValues.String("generator_token_url"),
		GeneratorClientID:     appValues.String("generator_client_id"),
		GeneratorClientSecret: appValues.String("generator_client_secret"),
		GeneratorTimeout:      appValues.Duration("generator_timeout", 2*time.Minute),

		BootstrapAdminLogin:    appValues.String("bootstrap_admin_login"),
		BootstrapAdminPassword: appValues.String("bootstrap_admin_password"),
	}

	return coreCfg, appCfg, nil
}

// minProdSessionKey is the shortest session key accepted in production.
const minProdSessionKey = 32

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.MongoDatabase == "" {
		return fmt.Errorf("mongo_database must be set")
	}
	if appCfg.MongoMinPoolSize > appCfg.MongoMaxPoolSize {
		return fmt.Errorf("mongo_min_pool_size (%d) exceeds mongo_max_pool_size (%d)",
			appCfg.MongoMinPoolSize, appCfg.MongoMaxPoolSize)
	}

	if coreCfg != nil && coreCfg.Env == "prod" && len(appCfg.SessionKey) < minProdSessionKey {
		return fmt.Errorf("session_key must be at least %d bytes in production", minProdSessionKey)
	}

	if appCfg.GeneratorURL != "" && !inputval.IsValidHTTPURL(appCfg.GeneratorURL) {
		return fmt.Errorf("generator_url must be an http(s) URL, got %q", appCfg.GeneratorURL)
	}
	if appCfg.GeneratorTokenURL != "" {
		if !inputval.IsValidHTTPURL(appCfg.GeneratorTokenURL) {
			return fmt.Errorf("generator_token_url must be an http(s) URL, got %q", appCfg.GeneratorTokenURL)
		}
		if appCfg.GeneratorClientID == "" {
			return fmt.Errorf("generator_token_url requires generator_client_id")
		}
	}

	if (appCfg.BootstrapAdminLogin == "") != (appCfg.BootstrapAdminPassword == "") {
		return fmt.Errorf("bootstrap_admin_login and bootstrap_admin_password must be set together")
	}

	return nil
}
