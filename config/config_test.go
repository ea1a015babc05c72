package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
server:
  port: "9000"
database:
  driver: postgres
  dsn: host=localhost user=teevil
jwt:
  access_secret: from-yaml
payment:
  provider: stub
  webhook_secret: whsec_yaml
  gateway_timeout: 3s
kafka:
  brokers: ["k1:9092"]
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9000" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("driver = %q", cfg.Database.Driver)
	}
	if cfg.JWT.AccessSecret != "from-env" {
		t.Errorf("env override not applied: %q", cfg.JWT.AccessSecret)
	}
	if cfg.Payment.GatewayTimeout != 3*time.Second {
		t.Errorf("gateway timeout = %v", cfg.Payment.GatewayTimeout)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b:9092" {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Payment.Currency != "usd" {
		t.Errorf("default currency lost: %q", cfg.Payment.Currency)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("PAYMENT_PROVIDER", "stub")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("driver = %q", cfg.Database.Driver)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"ok stub", func(c *Config) {}, false},
		{"missing jwt", func(c *Config) { c.JWT.AccessSecret = "" }, true},
		{"bad driver", func(c *Config) { c.Database.Driver = "mongo" }, true},
		{"stripe without key", func(c *Config) { c.Payment.Provider = "stripe" }, true},
		{"stripe complete", func(c *Config) {
			c.Payment.Provider = "stripe"
			c.Payment.SecretKey = "sk_test"
		}, false},
		{"bad provider", func(c *Config) { c.Payment.Provider = "paypal" }, true},
		{"zero timeout", func(c *Config) { c.Payment.GatewayTimeout = 0 }, true},
		{"zero rate window", func(c *Config) { c.RateLimit.Window = 0 }, true},
		{"zero rate requests", func(c *Config) { c.RateLimit.Requests = 0 }, true},
		{"negative rate requests", func(c *Config) { c.RateLimit.Requests = -1 }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.JWT.AccessSecret = "secret"
			cfg.Payment.Provider = "stub"
			cfg.Payment.WebhookSecret = "whsec"
			tc.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
