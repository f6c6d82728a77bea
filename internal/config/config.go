package config

import (
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets report mirror
	GoogleSpreadsheetID string
	GoogleReportsSheet  string

	// Bootstrap
	AdminEmail    string
	AdminPassword string
	SeedFile      string

	// Reports and dashboard
	AlertThreshold  float64
	ReportPolicy    string
	CacheTTL        time.Duration
	RefreshInterval time.Duration

	LogLevel string

	// Backend selection
	DataBackend string
}

var (
	validBackends = []string{"memory", "sqlite"}
	validPolicies = []string{"overwrite", "freeze-closed"}
	validLevels   = []string{"debug", "info", "warn", "error"}
)

// Load reads configuration from the environment, falling back to an
// optional YAML file named by CONFIG_FILE and then to defaults. Values
// that fail to parse keep their default.
func Load() *Config {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("Failed to read config file, using environment and defaults", "file", file, "error", err)
		}
	}

	return &Config{
		Port:               v.GetString("PORT"),
		RateLimitPerMinute: getInt(v, "RATE_LIMIT_PER_MINUTE", 60),

		SQLiteDBPath: v.GetString("SQLITE_DB_PATH"),

		AMQPURL:      v.GetString("AMQP_URL"),
		AMQPExchange: v.GetString("AMQP_EXCHANGE"),
		AMQPQueue:    v.GetString("AMQP_QUEUE"),

		GoogleSpreadsheetID: v.GetString("GOOGLE_SPREADSHEET_ID"),
		GoogleReportsSheet:  v.GetString("GOOGLE_REPORTS_SHEET"),

		AdminEmail:    v.GetString("ADMIN_EMAIL"),
		AdminPassword: v.GetString("ADMIN_PASSWORD"),
		SeedFile:      v.GetString("SEED_FILE"),

		AlertThreshold:  getFloat(v, "ALERT_THRESHOLD", 0.9),
		ReportPolicy:    strings.ToLower(v.GetString("REPORT_POLICY")),
		CacheTTL:        getDuration(v, "CACHE_TTL", time.Minute),
		RefreshInterval: getDuration(v, "REFRESH_INTERVAL", time.Hour),

		LogLevel: strings.ToLower(v.GetString("LOG_LEVEL")),

		DataBackend: strings.ToLower(v.GetString("DATA_BACKEND")),
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8081")
	v.SetDefault("SQLITE_DB_PATH", "./data/budget.db")
	v.SetDefault("AMQP_EXCHANGE", "budget")
	v.SetDefault("AMQP_QUEUE", "report_refresh")
	v.SetDefault("GOOGLE_REPORTS_SHEET", "Reports")
	v.SetDefault("ADMIN_EMAIL", "admin@example.com")
	v.SetDefault("ADMIN_PASSWORD", "admin")
	v.SetDefault("REPORT_POLICY", "overwrite")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATA_BACKEND", "sqlite")
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// AMQP is optional; when set it must be complete
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" && c.GoogleReportsSheet == "" {
		errors = append(errors, "Google reports sheet name is required when GOOGLE_SPREADSHEET_ID is set")
	}

	if _, err := mail.ParseAddress(c.AdminEmail); err != nil {
		errors = append(errors, fmt.Sprintf("invalid admin email '%s'", c.AdminEmail))
	}
	if c.AdminPassword == "" {
		errors = append(errors, "admin password cannot be empty")
	}
	if c.SeedFile != "" {
		if _, err := os.Stat(c.SeedFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("seed file does not exist: %s", c.SeedFile))
		}
	}

	if c.AlertThreshold <= 0 || c.AlertThreshold > 1 {
		errors = append(errors, fmt.Sprintf("invalid alert threshold %v: must be in (0, 1]", c.AlertThreshold))
	}
	if !slices.Contains(validPolicies, c.ReportPolicy) {
		errors = append(errors, fmt.Sprintf("invalid report policy '%s': must be one of %v", c.ReportPolicy, validPolicies))
	}
	if c.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.CacheTTL))
	}

	if c.RefreshInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at least 1 minute", c.RefreshInterval))
	} else if c.RefreshInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid refresh interval %v: must be at most 24 hours", c.RefreshInterval))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	if !slices.Contains(validLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLevels))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getInt(v *viper.Viper, key string, defaultValue int) int {
	if value := v.GetString(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloat(v *viper.Viper, key string, defaultValue float64) float64 {
	if value := v.GetString(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDuration(v *viper.Viper, key string, defaultValue time.Duration) time.Duration {
	if value := v.GetString(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
