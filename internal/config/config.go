package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"ieee-registration-bot/internal/domain"
)

// Config represents the application configuration
type Config struct {
	Log         LogConfig         `yaml:"log"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Reconcile   ReconcileConfig   `yaml:"reconcile"`
	Institution InstitutionConfig `yaml:"institution"`
	Mail        MailConfig        `yaml:"mail"`
	Google      GoogleConfig      `yaml:"google"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Roster      RosterConfig      `yaml:"roster"`
	HTTP        HTTPConfig        `yaml:"http"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`   // "debug", "info", "warn", "error"
	Format string `yaml:"format" env:"LOG_FORMAT"` // "json" or "text"
	File   string `yaml:"file" env:"LOG_FILE"`     // optional rotating log file
}

// SchedulerConfig controls the outer reconciliation loop
type SchedulerConfig struct {
	Interval   time.Duration `yaml:"interval" env:"REGISTRAR_INTERVAL"`
	RunOnStart *bool         `yaml:"run_on_start"`
}

// ReconcileConfig holds the engine's decision parameters
type ReconcileConfig struct {
	DryRun            bool   `yaml:"dry_run" env:"REGISTRAR_DRY_RUN"`
	ReminderAfterDays int    `yaml:"reminder_after_days" env:"REGISTRAR_REMINDER_AFTER_DAYS"`
	ExpireAfterDays   int    `yaml:"expire_after_days" env:"REGISTRAR_EXPIRE_AFTER_DAYS"`
	PruneWithdrawn    bool   `yaml:"prune_withdrawn" env:"REGISTRAR_PRUNE_WITHDRAWN"`
	Timezone          string `yaml:"timezone" env:"REGISTRAR_TIMEZONE"`
}

// InstitutionConfig is the pair of mail domains treated as one identity
type InstitutionConfig struct {
	PrimaryDomain string `yaml:"primary_domain"`
	AliasDomain   string `yaml:"alias_domain"`
}

// MailConfig contains outgoing email settings
type MailConfig struct {
	Provider          string         `yaml:"provider" env:"MAIL_PROVIDER"` // "gmail", "smtp" or "sendgrid"
	From              string         `yaml:"from" env:"MAIL_FROM"`
	FromName          string         `yaml:"from_name"`
	PresidentName     string         `yaml:"president_name" env:"MAIL_PRESIDENT_NAME"`
	CriticalRecipient string         `yaml:"critical_recipient" env:"MAIL_CRITICAL_RECIPIENT"`
	TemplateDir       string         `yaml:"template_dir" env:"MAIL_TEMPLATE_DIR"`
	SMTP              SMTPConfig     `yaml:"smtp"`
	SendGrid          SendGridConfig `yaml:"sendgrid"`
}

// SMTPConfig contains SMTP relay settings
type SMTPConfig struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     int    `yaml:"port" env:"SMTP_PORT"`
	User     string `yaml:"user" env:"SMTP_USER"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
}

// SendGridConfig contains SendGrid API settings
type SendGridConfig struct {
	APIKey string `yaml:"api_key" env:"SENDGRID_API_KEY"`
}

// GoogleConfig points at the OAuth client secret and the stored user token
type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file" env:"GOOGLE_CREDENTIALS_FILE"`
	TokenFile       string `yaml:"token_file" env:"GOOGLE_TOKEN_FILE"`
	User            string `yaml:"user"` // Gmail user id, "me" by default
}

// LedgerConfig selects the ledger backend
type LedgerConfig struct {
	Backend  string         `yaml:"backend" env:"LEDGER_BACKEND"` // "sheets", "postgres" or "sqlite"
	Sheets   SheetsConfig   `yaml:"sheets"`
	Database DatabaseConfig `yaml:"database"`
}

// SheetsConfig identifies the membership sheet
type SheetsConfig struct {
	SpreadsheetID string `yaml:"spreadsheet_id" env:"SHEETS_SPREADSHEET_ID"`
	SheetName     string `yaml:"sheet_name"`
}

// DatabaseConfig contains SQL ledger connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     int    `yaml:"port" env:"DB_PORT"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	Database string `yaml:"database" env:"DB_NAME"`
	SSLMode  string `yaml:"ssl_mode" env:"DB_SSL_MODE"`
	Path     string `yaml:"path" env:"DB_PATH"` // sqlite file
}

// RosterConfig contains the engagement portal settings
type RosterConfig struct {
	ProspectiveMemberURL string        `yaml:"prospective_member_url"`
	ApproveURL           string        `yaml:"approve_url"`
	DenyURL              string        `yaml:"deny_url"`
	LoginDomain          string        `yaml:"login_domain"`
	Username             string        `yaml:"username" env:"ROSTER_USERNAME"`
	Password             string        `yaml:"password" env:"ROSTER_PASSWORD"`
	ChromePath           string        `yaml:"chrome_path" env:"CHROME_PATH"`
	Headless             *bool         `yaml:"headless"`
	ListTimeout          time.Duration `yaml:"list_timeout"`
	ProfileTimeout       time.Duration `yaml:"profile_timeout"`
}

// HTTPConfig controls the optional status endpoint
type HTTPConfig struct {
	Addr string `yaml:"addr" env:"HTTP_ADDR"`
}

// TelemetryConfig controls OpenTelemetry export
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables if present
	if err := cfg.overrideWithEnv(); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables.
// Unset variables leave the YAML value in place.
func (c *Config) overrideWithEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// Validate fills defaults and checks if the configuration is valid
func (c *Config) Validate() error {
	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	// Scheduler defaults
	if c.Scheduler.Interval == 0 {
		c.Scheduler.Interval = 10 * time.Minute
	}
	if c.Scheduler.Interval < time.Minute {
		return fmt.Errorf("scheduler interval must be at least one minute, got %s", c.Scheduler.Interval)
	}
	if c.Scheduler.RunOnStart == nil {
		c.Scheduler.RunOnStart = boolPtr(true)
	}

	// Reconcile defaults
	if c.Reconcile.ReminderAfterDays == 0 {
		c.Reconcile.ReminderAfterDays = 7
	}
	if c.Reconcile.ExpireAfterDays == 0 {
		c.Reconcile.ExpireAfterDays = 7
	}
	if c.Reconcile.ReminderAfterDays < 0 || c.Reconcile.ExpireAfterDays < 0 {
		return fmt.Errorf("reminder and expiry thresholds must be positive")
	}
	if c.Reconcile.Timezone == "" {
		c.Reconcile.Timezone = "America/New_York"
	}
	if _, err := time.LoadLocation(c.Reconcile.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Reconcile.Timezone, err)
	}

	// Institution defaults
	if c.Institution.PrimaryDomain == "" {
		c.Institution.PrimaryDomain = "clemson.edu"
	}
	if c.Institution.AliasDomain == "" {
		c.Institution.AliasDomain = "g.clemson.edu"
	}
	if strings.EqualFold(c.Institution.PrimaryDomain, c.Institution.AliasDomain) {
		return fmt.Errorf("institution primary and alias domains must differ")
	}

	// Mail validation
	if c.Mail.Provider == "" {
		c.Mail.Provider = "gmail"
	}
	if c.Mail.From == "" {
		return fmt.Errorf("mail from address is required")
	}
	if c.Mail.CriticalRecipient == "" {
		c.Mail.CriticalRecipient = c.Mail.From
	}
	switch c.Mail.Provider {
	case "gmail":
	case "smtp":
		if c.Mail.SMTP.Host == "" {
			return fmt.Errorf("SMTP host is required")
		}
		if c.Mail.SMTP.Port <= 0 || c.Mail.SMTP.Port > 65535 {
			return fmt.Errorf("invalid SMTP port: %d", c.Mail.SMTP.Port)
		}
	case "sendgrid":
		if c.Mail.SendGrid.APIKey == "" {
			return fmt.Errorf("SendGrid API key is required")
		}
	default:
		return fmt.Errorf("unknown mail provider %q", c.Mail.Provider)
	}

	// Google validation; the inbox is always read through the Gmail API
	if c.Google.CredentialsFile == "" {
		return fmt.Errorf("google credentials file is required")
	}
	if c.Google.TokenFile == "" {
		c.Google.TokenFile = "token.json"
	}
	if c.Google.User == "" {
		c.Google.User = "me"
	}

	// Ledger validation
	if c.Ledger.Backend == "" {
		c.Ledger.Backend = "sheets"
	}
	switch c.Ledger.Backend {
	case "sheets":
		if c.Ledger.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("spreadsheet id is required for the sheets ledger")
		}
		if c.Ledger.Sheets.SheetName == "" {
			c.Ledger.Sheets.SheetName = "Members"
		}
	case "postgres":
		if c.Ledger.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Ledger.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Ledger.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Ledger.Database.Port == 0 {
			c.Ledger.Database.Port = 5432
		}
		if c.Ledger.Database.SSLMode == "" {
			c.Ledger.Database.SSLMode = "disable"
		}
	case "sqlite":
		if c.Ledger.Database.Path == "" {
			c.Ledger.Database.Path = "registration.db"
		}
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}

	// Roster validation
	if c.Roster.ProspectiveMemberURL == "" {
		return fmt.Errorf("roster prospective member url is required")
	}
	if c.Roster.ListTimeout == 0 {
		c.Roster.ListTimeout = 60 * time.Second
	}
	if c.Roster.ProfileTimeout == 0 {
		c.Roster.ProfileTimeout = 10 * time.Second
	}
	if c.Roster.Headless == nil {
		c.Roster.Headless = boolPtr(true)
	}

	return nil
}

// Location returns the timezone "today" is computed in. Validate has already
// checked the name.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Reconcile.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) InstitutionDomains() domain.InstitutionDomains {
	return domain.InstitutionDomains{Primary: c.Institution.PrimaryDomain, Alias: c.Institution.AliasDomain}
}

// GetDatabaseConnectionString returns the driver name and DSN for the SQL ledger
func (c *Config) GetDatabaseConnectionString() (string, string) {
	if c.Ledger.Backend == "sqlite" {
		return "sqlite", c.Ledger.Database.Path
	}
	return "postgres", fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Ledger.Database.User,
		c.Ledger.Database.Password,
		c.Ledger.Database.Host,
		c.Ledger.Database.Port,
		c.Ledger.Database.Database,
		c.Ledger.Database.SSLMode,
	)
}

func boolPtr(b bool) *bool { return &b }
