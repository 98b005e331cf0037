package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port             string        `mapstructure:"PORT"`
	Env              string        `mapstructure:"ENV"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL         string        `mapstructure:"REDIS_URL"`
	JWTSecret        string        `mapstructure:"JWT_SECRET"`
	TokenTTL         time.Duration `mapstructure:"TOKEN_TTL"`
	BcryptCost       int           `mapstructure:"BCRYPT_COST"`
	LockoutThreshold int           `mapstructure:"LOCKOUT_THRESHOLD"`
	LockoutDuration  time.Duration `mapstructure:"LOCKOUT_DURATION"`
	AuthRateLimit    int           `mapstructure:"AUTH_RATE_LIMIT"`
	AuthRateWindow   time.Duration `mapstructure:"AUTH_RATE_WINDOW"`
	APIRateLimit     int           `mapstructure:"API_RATE_LIMIT"`
	APIRateWindow    time.Duration `mapstructure:"API_RATE_WINDOW"`
	TOTPIssuer       string        `mapstructure:"TOTP_ISSUER"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
	MigrationsDir    string        `mapstructure:"MIGRATIONS_DIR"`
}

// devJWTSecret is the signing secret used when JWT_SECRET is unset in
// development. Validate() refuses to start production with it.
const devJWTSecret = "medicore-dev-secret-do-not-use-in-production"

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("LOCKOUT_THRESHOLD", 5)
	v.SetDefault("LOCKOUT_DURATION", "30m")
	v.SetDefault("AUTH_RATE_LIMIT", 10)
	v.SetDefault("AUTH_RATE_WINDOW", "15m")
	v.SetDefault("API_RATE_LIMIT", 100)
	v.SetDefault("API_RATE_WINDOW", "15m")
	v.SetDefault("TOTP_ISSUER", "MediCore")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("TOKEN_TTL")
	v.BindEnv("BCRYPT_COST")
	v.BindEnv("LOCKOUT_THRESHOLD")
	v.BindEnv("LOCKOUT_DURATION")
	v.BindEnv("AUTH_RATE_LIMIT")
	v.BindEnv("AUTH_RATE_WINDOW")
	v.BindEnv("API_RATE_LIMIT")
	v.BindEnv("API_RATE_WINDOW")
	v.BindEnv("TOTP_ISSUER")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("MIGRATIONS_DIR")

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

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		if !cfg.IsDev() {
			return nil, fmt.Errorf("JWT_SECRET is required when ENV is not development")
		}
		cfg.JWTSecret = devJWTSecret
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: JWT_SECRET is not set; using the built-in development secret.")
		log.Println("WARNING: Every token signed with it is forgeable by anyone with the")
		log.Println("WARNING: source. Set JWT_SECRET before deploying anywhere real.")
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

// Validate checks that the configuration is safe to run. Production requires
// a real signing secret of useful length; the credential parameters must stay
// inside the ranges the login flow is built around.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.JWTSecret == devJWTSecret {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters, got %d", len(c.JWTSecret))
		}
	}

	// bcrypt rejects costs outside 4..31; costs below 10 are too fast to
	// slow an offline attack.
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	if c.IsProduction() && c.BcryptCost < 10 {
		return fmt.Errorf("BCRYPT_COST must be at least 10 in production, got %d", c.BcryptCost)
	}

	if c.LockoutThreshold < 1 {
		return fmt.Errorf("LOCKOUT_THRESHOLD must be positive, got %d", c.LockoutThreshold)
	}
	if c.LockoutDuration <= 0 {
		return fmt.Errorf("LOCKOUT_DURATION must be positive, got %s", c.LockoutDuration)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if c.AuthRateLimit < 1 || c.APIRateLimit < 1 {
		return fmt.Errorf("rate limit ceilings must be positive")
	}
	if c.AuthRateWindow <= 0 || c.APIRateWindow <= 0 {
		return fmt.Errorf("rate limit windows must be positive")
	}

	return nil
}
