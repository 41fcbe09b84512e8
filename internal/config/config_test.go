package config

import (
	"testing"
	"time"
)

func TestLoad_RequiresMongoURI(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	if _, err := Load(true); err == nil {
		t.Fatal("expected error when MONGO_URI is missing")
	}
	if _, err := Load(false); err != nil {
		t.Fatalf("in-memory load should not need MONGO_URI: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")

	cfg, err := Load(true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.MongoDatabase != "clinic" {
		t.Errorf("expected default database clinic, got %s", cfg.MongoDatabase)
	}
	if cfg.JWTTTL != 24*time.Hour {
		t.Errorf("expected default JWT TTL 24h, got %s", cfg.JWTTTL)
	}
	if cfg.PaymentTTL != 30*time.Minute {
		t.Errorf("expected default payment TTL 30m, got %s", cfg.PaymentTTL)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Errorf("unexpected CORS origins %v", cfg.CORSOrigins)
	}
	if cfg.KafkaEnabled() {
		t.Error("expected kafka disabled by default")
	}
}

func TestLoad_Lists(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load(true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Errorf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("unexpected CORS origins %v", cfg.CORSOrigins)
	}
}

func validConfig() *Config {
	return &Config{
		Env:              "development",
		JWTTTL:           time.Hour,
		PaymentTTL:       time.Minute,
		ClinicTimezone:   "Asia/Ho_Chi_Minh",
		PaymentSweepSpec: "*/5 * * * *",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid development", func(c *Config) {}, false},
		{"production without secret", func(c *Config) { c.Env = "production" }, true},
		{"production without webhook token", func(c *Config) { c.Env = "production"; c.JWTSecret = "s3cret" }, true},
		{"production complete", func(c *Config) { c.Env = "production"; c.JWTSecret = "s3cret"; c.WebhookToken = "hook" }, false},
		{"unknown env", func(c *Config) { c.Env = "qa" }, true},
		{"bad timezone", func(c *Config) { c.ClinicTimezone = "Mars/Olympus" }, true},
		{"zero jwt ttl", func(c *Config) { c.JWTTTL = 0 }, true},
		{"negative payment ttl", func(c *Config) { c.PaymentTTL = -time.Minute }, true},
		{"bad cron spec", func(c *Config) { c.PaymentSweepSpec = "every five minutes" }, true},
		{"kafka without topic", func(c *Config) { c.KafkaBrokers = []string{"k:9092"} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	c := validConfig()
	loc, err := c.Location()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := time.Date(2025, 6, 16, 1, 0, 0, 0, time.UTC).In(loc).Hour()
	if got != 8 {
		t.Errorf("expected ICT to be UTC+7, got hour %d", got)
	}
}
