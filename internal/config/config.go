package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var (
	routePrefixPattern = regexp.MustCompile(`^(/[A-Za-z0-9._~-]+)+$`)
	tempPrefixPattern  = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// StoreConfig holds settings for the document store directory.
type StoreConfig struct {
	// Dir is the store root. When empty a process-local temporary directory is used.
	Dir           string
	TempPrefix    string
	MaxIDAttempts int
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string
	JSON  bool
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables.
type AppConfig struct {
	AppHost            string
	Port               string
	RoutePrefix        string
	BodyLimitMB        int
	ShutdownTimeoutSec int
	Store              StoreConfig
	Log                LogConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	return &AppConfig{
		AppHost:            getEnv("APP_HOST", "localhost:8080"),
		Port:               getEnv("PORT", "8080"),
		RoutePrefix:        normalizePrefix(getEnv("ROUTE_PREFIX", "/storage/documents")),
		BodyLimitMB:        getEnvInt("BODY_LIMIT_MB", 64),
		ShutdownTimeoutSec: getEnvInt("SHUTDOWN_TIMEOUT_SEC", 10),
		Store: StoreConfig{
			Dir:           getEnv("STORE_DIR", ""),
			TempPrefix:    getEnv("STORE_TEMP_PREFIX", "docstore_"),
			MaxIDAttempts: getEnvInt("STORE_MAX_ID_ATTEMPTS", 5),
		},
		Log: LogConfig{
			Level: strings.ToLower(getEnv("LOG_LEVEL", "info")),
			JSON:  getEnvBool("LOG_JSON", true),
		},
	}
}

// Validate checks the loaded values before anything is provisioned.
func (c *AppConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, is.Port),
		validation.Field(&c.RoutePrefix, validation.Required, validation.Match(routePrefixPattern)),
		validation.Field(&c.BodyLimitMB, validation.Required, validation.Min(1)),
		validation.Field(&c.ShutdownTimeoutSec, validation.Required, validation.Min(1)),
		validation.Field(&c.Store),
		validation.Field(&c.Log),
	)
}

// Validate checks store settings.
func (c StoreConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.TempPrefix, validation.Required, validation.Match(tempPrefixPattern)),
		validation.Field(&c.MaxIDAttempts, validation.Required, validation.Min(1), validation.Max(100)),
	)
}

// Validate checks logger settings.
func (c LogConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.Required, validation.In("trace", "debug", "info", "warn", "error")),
	)
}

func normalizePrefix(p string) string {
	p = strings.TrimRight(p, "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
