package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	JWT       JWTConfig       `yaml:"jwt"`
	Payment   PaymentConfig   `yaml:"payment"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Mail      MailConfig      `yaml:"mail"`
	Firebase  FirebaseConfig  `yaml:"firebase"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port         string        `yaml:"port"`
	Env          string        `yaml:"env"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	// Driver is one of mysql, postgres, sqlite.
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type JWTConfig struct {
	AccessSecret string        `yaml:"access_secret"`
	AccessExpiry time.Duration `yaml:"access_expiry"`
	Issuer       string        `yaml:"issuer"`
}

type PaymentConfig struct {
	// Provider selects the gateway: stripe or stub.
	Provider         string        `yaml:"provider"`
	SecretKey        string        `yaml:"secret_key"`
	WebhookSecret    string        `yaml:"webhook_secret"`
	Currency         string        `yaml:"currency"`
	GatewayTimeout   time.Duration `yaml:"gateway_timeout"`
	WebhookTolerance time.Duration `yaml:"webhook_tolerance"`
}

type RedisConfig struct {
	URL         string        `yaml:"url"`
	WebhookTTL  time.Duration `yaml:"webhook_ttl"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	TopicPrefix string   `yaml:"topic_prefix"`
}

type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type FirebaseConfig struct {
	ServiceAccountPath string `yaml:"service_account_path"`
}

type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns a configuration suitable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			Env:          "development",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "mysql",
			DSN:             "teevil:teevil@tcp(localhost:3306)/teevil?charset=utf8mb4&parseTime=True&loc=Local",
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessExpiry: 24 * time.Hour,
			Issuer:       "teevil",
		},
		Payment: PaymentConfig{
			Provider:         "stripe",
			Currency:         "usd",
			GatewayTimeout:   15 * time.Second,
			WebhookTolerance: 5 * time.Minute,
		},
		Redis: RedisConfig{
			WebhookTTL:  72 * time.Hour,
			DialTimeout: 5 * time.Second,
		},
		Kafka: KafkaConfig{
			TopicPrefix: "teevil",
		},
		Mail: MailConfig{
			Port: 587,
			From: "Teevil <no-reply@teevil.com>",
		},
		RateLimit: RateLimitConfig{
			Requests: 100,
			Window:   time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// Load reads an optional .env file, an optional YAML file at path and then
// environment overrides, in that order.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports missing settings the service cannot start without.
func (c *Config) Validate() error {
	if c.JWT.AccessSecret == "" {
		return errors.New("config: jwt access secret is required (JWT_SECRET)")
	}
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	switch c.Payment.Provider {
	case "stripe":
		if c.Payment.SecretKey == "" || c.Payment.WebhookSecret == "" {
			return errors.New("config: stripe secret key and webhook secret are required")
		}
	case "stub":
		if c.Payment.WebhookSecret == "" {
			return errors.New("config: webhook secret is required")
		}
	default:
		return fmt.Errorf("config: unsupported payment provider %q", c.Payment.Provider)
	}
	if c.Payment.GatewayTimeout <= 0 {
		return errors.New("config: payment gateway timeout must be positive")
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("config: rate limit requests and window must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SERVER_PORT")
	setString(&cfg.Server.Env, "APP_ENV")
	setString(&cfg.Database.Driver, "DB_DRIVER")
	setString(&cfg.Database.DSN, "DB_DSN")
	setString(&cfg.JWT.AccessSecret, "JWT_SECRET")
	setDuration(&cfg.JWT.AccessExpiry, "JWT_EXPIRY")
	setString(&cfg.Payment.Provider, "PAYMENT_PROVIDER")
	setString(&cfg.Payment.SecretKey, "STRIPE_SECRET_KEY")
	setString(&cfg.Payment.WebhookSecret, "STRIPE_WEBHOOK_SECRET")
	setDuration(&cfg.Payment.GatewayTimeout, "PAYMENT_GATEWAY_TIMEOUT")
	setString(&cfg.Redis.URL, "REDIS_URL")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	setString(&cfg.Mail.Host, "MAIL_HOST")
	setInt(&cfg.Mail.Port, "MAIL_PORT")
	setString(&cfg.Mail.Username, "MAIL_USER")
	setString(&cfg.Mail.Password, "MAIL_PASSWORD")
	setString(&cfg.Mail.From, "MAIL_FROM")
	setString(&cfg.Firebase.ServiceAccountPath, "FIREBASE_SERVICE_ACCOUNT_PATH")
	setInt(&cfg.RateLimit.Requests, "RATE_LIMIT_REQUESTS")
	setDuration(&cfg.RateLimit.Window, "RATE_LIMIT_WINDOW")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		cfg.Log.Pretty, _ = strconv.ParseBool(v)
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
