// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables (SCHEDULEHUB_*), configuration
// files, or command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig
// keeps the framework-level settings such as ports, TLS, logging and CORS.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string // signs session cookies and CSRF tokens
	SessionName   string
	SessionDomain string // blank means current host
	SessionMaxAge time.Duration

	BaseURL string

	// Audit logging: "all", "db", "log" or "off"
	AuditLogAuth     string
	AuditLogAdmin    string
	AuditLogSchedule string

	// CacheTTL bounds how long timetable reads are served from memory.
	CacheTTL time.Duration

	// Upstream timetable generator. Generation is disabled when GeneratorURL is blank.
	GeneratorURL          string
	GeneratorTokenURL     string
	GeneratorClientID     string
	GeneratorClientSecret string
	GeneratorTimeout      time.Duration

	// First admin account, created when no admin exists yet.
	BootstrapAdminLogin    string
	BootstrapAdminPassword string
}
