package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Redis         RedisConfig         `yaml:"redis"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Scanner       ScannerConfig       `yaml:"scanner"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Admin         AdminConfig         `yaml:"admin"`
	Log           LogConfig           `yaml:"log"`
}

type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  string `yaml:"readTimeout"`
	WriteTimeout string `yaml:"writeTimeout"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

type PostgresConfig struct {
	URL string `yaml:"url"`
}

type CatalogConfig struct {
	TTL string `yaml:"ttl"`
}

type ScannerConfig struct {
	// Interval between in-process scans; "0" leaves scheduling to an external cron.
	Interval    string `yaml:"interval"`
	Secret      string `yaml:"secret"`
	Concurrency int    `yaml:"concurrency" validate:"gte=0"`
}

type NotificationsConfig struct {
	Provider    string      `yaml:"provider" validate:"oneof=console sendgrid"`
	SendgridKey string      `yaml:"sendgridKey" validate:"required_if=Provider sendgrid"`
	FromEmail   string      `yaml:"fromEmail" validate:"required_if=Provider sendgrid"`
	FromName    string      `yaml:"fromName"`
	AppName     string      `yaml:"appName"`
	SiteURL     string      `yaml:"siteURL" validate:"omitempty,url"`
	Timeout     string      `yaml:"timeout"`
	Concurrency int         `yaml:"concurrency" validate:"gte=0"`
	Retry       RetryConfig `yaml:"retry"`
}

type RetryConfig struct {
	Enabled     bool `yaml:"enabled"`
	MaxAttempts int  `yaml:"maxAttempts" validate:"gte=0"`
}

type AdminConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
}

type LogConfig struct {
	Level        string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Pretty       bool   `yaml:"pretty"`
	RollbarToken string `yaml:"rollbarToken"`
	Environment  string `yaml:"environment"`
}

// Default returns the settings used for anything the file leaves out.
func Default() Config {
	cfg := Config{}
	cfg.Server.ReadTimeout = "15s"
	cfg.Server.WriteTimeout = "15s"
	cfg.Catalog.TTL = "10m"
	cfg.Scanner.Interval = "1m"
	cfg.Scanner.Concurrency = 16
	cfg.Notifications.Provider = "console"
	cfg.Notifications.AppName = "PrepCUET"
	cfg.Notifications.Timeout = "10s"
	cfg.Notifications.Concurrency = 16
	cfg.Notifications.Retry.Enabled = true
	cfg.Notifications.Retry.MaxAttempts = 3
	cfg.Log.Level = "info"
	cfg.Log.Environment = "development"
	return cfg
}

// Load reads YAML config from path on top of Default, applies environment
// overrides (a .env file in the working directory is honored) and validates.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}
	applyEnv(&cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays PREPCUET_<SECTION>_<KEY> variables, plus a few
// conventional names (CRON_SECRET, DATABASE_URL, SENDGRID_API_KEY).
func applyEnv(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix("PREPCUET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("scanner.secret", "PREPCUET_SCANNER_SECRET", "CRON_SECRET")
	_ = v.BindEnv("postgres.url", "PREPCUET_POSTGRES_URL", "DATABASE_URL")
	_ = v.BindEnv("notifications.sendgridkey", "PREPCUET_NOTIFICATIONS_SENDGRIDKEY", "SENDGRID_API_KEY")

	overrides := map[string]*string{
		"server.port":               &cfg.Server.Port,
		"redis.addr":                &cfg.Redis.Addr,
		"redis.password":            &cfg.Redis.Password,
		"postgres.url":              &cfg.Postgres.URL,
		"scanner.interval":          &cfg.Scanner.Interval,
		"scanner.secret":            &cfg.Scanner.Secret,
		"notifications.provider":    &cfg.Notifications.Provider,
		"notifications.sendgridkey": &cfg.Notifications.SendgridKey,
		"notifications.fromemail":   &cfg.Notifications.FromEmail,
		"notifications.siteurl":     &cfg.Notifications.SiteURL,
		"admin.jwtsecret":           &cfg.Admin.JWTSecret,
		"log.level":                 &cfg.Log.Level,
		"log.rollbartoken":          &cfg.Log.RollbarToken,
		"log.environment":           &cfg.Log.Environment,
	}
	for key, dst := range overrides {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	if v.IsSet("redis.db") {
		cfg.Redis.DB = v.GetInt("redis.db")
	}
	if v.IsSet("log.pretty") {
		cfg.Log.Pretty = v.GetBool("log.pretty")
	}
	if v.IsSet("notifications.retry.enabled") {
		cfg.Notifications.Retry.Enabled = v.GetBool("notifications.retry.enabled")
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
