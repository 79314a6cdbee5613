// Package config loads service settings from the environment, an optional
// .env file and an optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Store backends.
const (
	BackendSQL  = "sql"
	BackendREST = "rest"
)

// Config holds every setting the service reads at startup.
type Config struct {
	Port        string
	GRPCPort    string
	AppEnv      string
	ServiceName string
	LogLevel    string

	StoreBackend string
	DBDriver     string
	DBDSN        string

	SupabaseURL           string
	SupabaseAnonKey       string
	SupabaseJWTSecret     string
	PasswordResetRedirect string

	AMQPURL      string
	AMQPExchange string

	RedisAddr       string
	RedisPassword   string
	RateLimitMax    int
	RateLimitWindow time.Duration

	OTLPEndpoint string

	SessionPageSize int
	TimeZone        string
	DebugRoutes     bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("GRPC_PORT", "9090")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("SERVICE_NAME", "timemate")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", BackendSQL)
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_DSN", "file:timemate.db?cache=shared")
	v.SetDefault("SUPABASE_URL", "")
	v.SetDefault("SUPABASE_ANON_KEY", "")
	v.SetDefault("SUPABASE_JWT_SECRET", "")
	v.SetDefault("PASSWORD_RESET_REDIRECT", "")
	v.SetDefault("AMQP_URL", "")
	v.SetDefault("AMQP_EXCHANGE", "timemate.events")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("RATE_LIMIT_MAX", 20)
	v.SetDefault("RATE_LIMIT_WINDOW", "1m")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("SESSION_PAGE_SIZE", 50)
	v.SetDefault("TIME_ZONE", "Asia/Seoul")
	v.SetDefault("DEBUG_ROUTES", false)
}

// Load reads the configuration. configFile may be empty.
func Load(configFile string) (*Config, error) {
	// a missing .env is fine, the environment alone is enough
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	window, err := time.ParseDuration(v.GetString("RATE_LIMIT_WINDOW"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW: %w", err)
	}

	cfg := &Config{
		Port:                  v.GetString("PORT"),
		GRPCPort:              v.GetString("GRPC_PORT"),
		AppEnv:                v.GetString("APP_ENV"),
		ServiceName:           v.GetString("SERVICE_NAME"),
		LogLevel:              v.GetString("LOG_LEVEL"),
		StoreBackend:          strings.ToLower(v.GetString("STORE_BACKEND")),
		DBDriver:              strings.ToLower(v.GetString("DB_DRIVER")),
		DBDSN:                 v.GetString("DB_DSN"),
		SupabaseURL:           v.GetString("SUPABASE_URL"),
		SupabaseAnonKey:       v.GetString("SUPABASE_ANON_KEY"),
		SupabaseJWTSecret:     v.GetString("SUPABASE_JWT_SECRET"),
		PasswordResetRedirect: v.GetString("PASSWORD_RESET_REDIRECT"),
		AMQPURL:               v.GetString("AMQP_URL"),
		AMQPExchange:          v.GetString("AMQP_EXCHANGE"),
		RedisAddr:             v.GetString("REDIS_ADDR"),
		RedisPassword:         v.GetString("REDIS_PASSWORD"),
		RateLimitMax:          v.GetInt("RATE_LIMIT_MAX"),
		RateLimitWindow:       window,
		OTLPEndpoint:          v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		SessionPageSize:       v.GetInt("SESSION_PAGE_SIZE"),
		TimeZone:              v.GetString("TIME_ZONE"),
		DebugRoutes:           v.GetBool("DEBUG_ROUTES"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendSQL:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN must be set for the %s backend", BackendSQL)
		}
	case BackendREST:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_ANON_KEY must be set for the %s backend", BackendREST)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		logrus.Warnf("invalid LOG_LEVEL %q, using info", c.LogLevel)
		c.LogLevel = "info"
	}
	return nil
}

// Location resolves TimeZone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		logrus.WithError(err).Warnf("unknown TIME_ZONE %q, using UTC", c.TimeZone)
		return time.UTC
	}
	return loc
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
