// internal/app/bootstrap/appconfig.go
package bootstrap

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like HTTP/HTTPS
// ports, TLS, logging level and format, CORS, and request limits.
// AppConfig is where everything specific to PaperPress lives.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: paperpress-session)
	SessionDomain string // Cookie domain (blank means current host)

	// Email/SMTP configuration
	MailSMTPHost string // SMTP server host (e.g., localhost for Mailpit)
	MailSMTPPort int    // SMTP server port (e.g., 1025 for Mailpit, 587 for SES)
	MailSMTPUser string // SMTP username (empty for Mailpit)
	MailSMTPPass string // SMTP password
	MailFrom     string // From email address (e.g., noreply@paperpress.io)
	MailFromName string // From display name (e.g., PaperPress)

	// Base URL for OAuth callbacks and email links
	BaseURL string // e.g., "https://paperpress.io" or "http://localhost:3000"

	// Social sign-in credentials, one pair per provider
	GoogleClientID      string
	GoogleClientSecret  string
	TwitterClientID     string
	TwitterClientSecret string
	GitHubClientID      string
	GitHubClientSecret  string

	// Login/signup rate limiting
	AuthRateLimit  int    // attempts allowed per window, per client IP
	AuthRateWindow string // window duration (e.g., "1m")
}
