// Package config provides configuration management for the application.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application.
type Config struct {
	// AWS
	AWSRegion string
	S3Bucket  string

	// GuidelinesS3Key is the object key of the guidelines override document.
	// Empty means the built-in default tables are used.
	GuidelinesS3Key string

	// Database
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBMaxConns int

	// RetentionDays bounds how long evaluation records are kept.
	// Zero keeps them forever.
	RetentionDays int

	// SES
	SESSenderEmail       string
	SummaryRecipient     string
	NotificationsEnabled bool

	// Server
	Port           int
	AllowedOrigins []string

	// Application
	Stage    string
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	_ = godotenv.Load()

	cfg := &Config{
		// AWS
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:        getEnv("S3_BUCKET", "mortgage-scenario-engine-dev"),
		GuidelinesS3Key: getEnv("GUIDELINES_S3_KEY", ""),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBName:     getEnv("DB_NAME", "mortgage_scenarios"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBMaxConns: getEnvInt("DB_MAX_CONNS", 10),

		RetentionDays: getEnvInt("EVALUATION_RETENTION_DAYS", 0),

		// SES
		SESSenderEmail:       getEnv("SES_SENDER_EMAIL", ""),
		SummaryRecipient:     getEnv("SUMMARY_RECIPIENT_EMAIL", ""),
		NotificationsEnabled: getEnvBool("NOTIFICATIONS_ENABLED", false),

		// Server
		Port:           getEnvInt("PORT", 8080),
		AllowedOrigins: []string{getEnv("ALLOWED_ORIGIN", "*")},

		// Application
		Stage:    getEnv("STAGE", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// DatabaseURL returns the PostgreSQL connection string.
func (c *Config) DatabaseURL() string {
	sslMode := "require" // Use SSL for RDS
	if c.DBHost == "localhost" || c.DBHost == "127.0.0.1" {
		sslMode = "disable" // Disable SSL for local development
	}
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + strconv.Itoa(c.DBPort) + "/" + c.DBName + "?sslmode=" + sslMode
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as int or returns a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as bool or returns a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
