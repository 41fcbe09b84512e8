package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

type Config struct {
	Port             string        `mapstructure:"API_PORT"`
	Env              string        `mapstructure:"ENV"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	MongoURI         string        `mapstructure:"MONGO_URI"`
	MongoDatabase    string        `mapstructure:"MONGO_DATABASE"`
	JWTSecret        string        `mapstructure:"JWT_SECRET"`
	JWTTTL           time.Duration `mapstructure:"JWT_TTL"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
	ClinicTimezone   string        `mapstructure:"CLINIC_TIMEZONE"`
	KafkaBrokers     []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic       string        `mapstructure:"KAFKA_TOPIC"`
	SentryDSN        string        `mapstructure:"SENTRY_DSN"`
	PaymentSweepSpec string        `mapstructure:"PAYMENT_SWEEP_SPEC"`
	PaymentTTL       time.Duration `mapstructure:"PAYMENT_TTL"`
	WebhookToken     string        `mapstructure:"PAYMENT_WEBHOOK_TOKEN"`
}

var keys = []string{
	"API_PORT", "ENV", "LOG_LEVEL", "MONGO_URI", "MONGO_DATABASE",
	"JWT_SECRET", "JWT_TTL", "CORS_ORIGINS", "CLINIC_TIMEZONE",
	"KAFKA_BROKERS", "KAFKA_TOPIC", "SENTRY_DSN",
	"PAYMENT_SWEEP_SPEC", "PAYMENT_TTL", "PAYMENT_WEBHOOK_TOKEN",
}

// Load reads .env when present, then the environment. MONGO_URI is
// required unless requireMongo is false (in-memory runs).
func Load(requireMongo bool) (*Config, error) {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("API_PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MONGO_DATABASE", "clinic")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("CLINIC_TIMEZONE", "Asia/Ho_Chi_Minh")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "appointment_events")
	v.SetDefault("PAYMENT_SWEEP_SPEC", "*/5 * * * *")
	v.SetDefault("PAYMENT_TTL", "30m")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Comma separated lists arrive as a single string from the environment.
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(v.GetString("KAFKA_BROKERS"))

	if requireMongo && cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGO_URI is required")
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location resolves CLINIC_TIMEZONE. Timeslot start times are wall-clock
// times in this zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ClinicTimezone)
	if err != nil {
		return nil, fmt.Errorf("CLINIC_TIMEZONE %q: %w", c.ClinicTimezone, err)
	}
	return loc, nil
}

// KafkaEnabled reports whether appointment events go to a broker.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	switch c.Env {
	case "development", "test", "staging", "production":
	default:
		return fmt.Errorf("ENV must be development, test, staging or production, got %q", c.Env)
	}
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV=%s", c.Env)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}
	if c.PaymentTTL <= 0 {
		return fmt.Errorf("PAYMENT_TTL must be positive, got %s", c.PaymentTTL)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(c.PaymentSweepSpec); err != nil {
		return fmt.Errorf("PAYMENT_SWEEP_SPEC %q: %w", c.PaymentSweepSpec, err)
	}
	if c.IsProduction() && c.WebhookToken == "" {
		return fmt.Errorf("PAYMENT_WEBHOOK_TOKEN is required in production")
	}
	if c.KafkaEnabled() && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}
