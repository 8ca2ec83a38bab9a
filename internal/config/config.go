package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string   `mapstructure:"PORT"`
	Env              string   `mapstructure:"ENV"`
	DatabaseURL      string   `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL         string   `mapstructure:"REDIS_URL"`
	BackendBaseURL   string   `mapstructure:"BACKEND_BASE_URL"`
	BackendTimeoutMS int      `mapstructure:"BACKEND_TIMEOUT_MS"`
	DraftTTLHours    int      `mapstructure:"DRAFT_TTL_HOURS"`
	AuthSecret       string   `mapstructure:"AUTH_SECRET"`
	AuthIssuer       string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience     string   `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins      []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS     float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int      `mapstructure:"RATE_LIMIT_BURST"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("BACKEND_TIMEOUT_MS", 15000)
	v.SetDefault("DRAFT_TTL_HOURS", 720)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("BACKEND_BASE_URL")
	v.BindEnv("BACKEND_TIMEOUT_MS")
	v.BindEnv("DRAFT_TTL_HOURS")
	v.BindEnv("AUTH_SECRET")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.BackendBaseURL == "" {
		return nil, fmt.Errorf("BACKEND_BASE_URL is required")
	}
	if cfg.DatabaseURL == "" && cfg.RedisURL == "" {
		return nil, fmt.Errorf("either DATABASE_URL or REDIS_URL is required for draft storage")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active — all requests share one owner.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: Set ENV=production and configure AUTH_SECRET for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// BackendTimeout returns the per-call timeout for report backend requests.
func (c *Config) BackendTimeout() time.Duration {
	if c.BackendTimeoutMS <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.BackendTimeoutMS) * time.Millisecond
}

// DraftTTL returns the retention window for idle drafts.
func (c *Config) DraftTTL() time.Duration {
	if c.DraftTTLHours <= 0 {
		return 720 * time.Hour
	}
	return time.Duration(c.DraftTTLHours) * time.Hour
}

// Validate checks that the configuration is safe to run. Outside of
// development mode AUTH_SECRET must be set so that real bearer-token
// authentication is enforced.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSecret == "" {
		return fmt.Errorf(
			"AUTH_SECRET must be set when ENV is %q. "+
				"Refusing to start without authentication configuration", c.Env)
	}
	if c.BackendTimeoutMS < 0 {
		return fmt.Errorf("BACKEND_TIMEOUT_MS must not be negative, got %d", c.BackendTimeoutMS)
	}
	if c.DraftTTLHours < 0 {
		return fmt.Errorf("DRAFT_TTL_HOURS must not be negative, got %d", c.DraftTTLHours)
	}
	return nil
}
