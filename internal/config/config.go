package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string   `mapstructure:"PORT"`
	Env           string   `mapstructure:"ENV"`
	DatabaseURL   string   `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32    `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir string   `mapstructure:"MIGRATIONS_DIR"`
	RedisURL      string   `mapstructure:"REDIS_URL"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`

	JWTSecret  string        `mapstructure:"JWT_SECRET"`
	JWTIssuer  string        `mapstructure:"JWT_ISSUER"`
	SessionTTL time.Duration `mapstructure:"SESSION_TTL"`
	BcryptCost int           `mapstructure:"BCRYPT_COST"`

	OTPTTL                 time.Duration `mapstructure:"OTP_TTL"`
	OTPResendCooldown      time.Duration `mapstructure:"OTP_RESEND_COOLDOWN"`
	ChallengePruneInterval time.Duration `mapstructure:"CHALLENGE_PRUNE_INTERVAL"`

	SMSGatewayURL   string `mapstructure:"SMS_GATEWAY_URL"`
	SMSGatewayToken string `mapstructure:"SMS_GATEWAY_TOKEN"`
	SMSSenderID     string `mapstructure:"SMS_SENDER_ID"`
	ClinicName      string `mapstructure:"CLINIC_NAME"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR",
	"REDIS_URL", "CORS_ORIGINS",
	"JWT_SECRET", "JWT_ISSUER", "SESSION_TTL", "BCRYPT_COST",
	"OTP_TTL", "OTP_RESEND_COOLDOWN", "CHALLENGE_PRUNE_INTERVAL",
	"SMS_GATEWAY_URL", "SMS_GATEWAY_TOKEN", "SMS_SENDER_ID", "CLINIC_NAME",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("JWT_ISSUER", "clinic-backoffice")
	v.SetDefault("SESSION_TTL", 24*time.Hour)
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("OTP_TTL", 10*time.Minute)
	v.SetDefault("OTP_RESEND_COOLDOWN", time.Duration(0))
	v.SetDefault("CHALLENGE_PRUNE_INTERVAL", time.Hour)
	v.SetDefault("SMS_SENDER_ID", "CLINIC")
	v.SetDefault("CLINIC_NAME", "the clinic")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.JWTSecret == "" {
		log.Println("WARNING: JWT_SECRET not set, using an insecure development secret.")
		cfg.JWTSecret = "dev-insecure-secret"
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

// SMSEnabled reports whether a real SMS gateway is configured.
func (c *Config) SMSEnabled() bool {
	return c.SMSGatewayURL != ""
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() {
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production, got %d", len(c.JWTSecret))
		}
		if !c.SMSEnabled() {
			return fmt.Errorf("SMS_GATEWAY_URL is required in production")
		}
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.OTPTTL <= 0 {
		return fmt.Errorf("OTP_TTL must be positive, got %s", c.OTPTTL)
	}
	if c.OTPResendCooldown < 0 {
		return fmt.Errorf("OTP_RESEND_COOLDOWN must not be negative")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	return nil
}
