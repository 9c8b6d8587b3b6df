package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// OpenAI configuration
	OpenAIKey   string
	OpenAIModel string

	// Google Sheets ledger configuration
	GoogleSheetID             string
	GoogleServiceAccountEmail string
	GooglePrivateKey          string

	// Notification configuration
	SlackWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string

	// Scoring configuration
	AlertMinScore          int
	FreshnessHalfLifeHours float64

	// Subreddits eligible for outreach; entries may end with '*' for a
	// prefix wildcard. Empty list allows all subreddits.
	SubredditAllowlist []string

	// Schedule configuration
	WeeklyReportHourUTC int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		OpenAIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIModel: getEnv("OPENAI_MODEL", "gpt-4.1-mini"),

		GoogleSheetID:             getEnv("GOOGLE_SHEET_ID", ""),
		GoogleServiceAccountEmail: getEnv("GOOGLE_SERVICE_ACCOUNT_EMAIL", ""),
		GooglePrivateKey:          normalizePrivateKey(getEnv("GOOGLE_PRIVATE_KEY", "")),

		SlackWebhookURL:   getEnv("SLACK_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),

		AlertMinScore:          getIntEnv("ALERT_MIN_SCORE", 70),
		FreshnessHalfLifeHours: getFloatEnv("FRESHNESS_HALF_LIFE_HOURS", 8),

		SubredditAllowlist: getSliceEnv("SUBREDDIT_ALLOWLIST", nil),

		WeeklyReportHourUTC: getIntEnv("WEEKLY_REPORT_HOUR_UTC", 14),
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}

	if c.GoogleSheetID == "" || c.GoogleServiceAccountEmail == "" || c.GooglePrivateKey == "" {
		return fmt.Errorf("GOOGLE_SHEET_ID, GOOGLE_SERVICE_ACCOUNT_EMAIL and GOOGLE_PRIVATE_KEY are required")
	}

	if c.FreshnessHalfLifeHours <= 0 {
		return fmt.Errorf("FRESHNESS_HALF_LIFE_HOURS must be positive")
	}

	if c.WeeklyReportHourUTC < 0 || c.WeeklyReportHourUTC > 23 {
		return fmt.Errorf("WEEKLY_REPORT_HOUR_UTC must be between 0 and 23")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// normalizePrivateKey restores real newlines in keys pasted as single-line env values.
func normalizePrivateKey(key string) string {
	return strings.ReplaceAll(key, `\n`, "\n")
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var cleaned []string
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		return cleaned
	}
	return defaultValue
}
