package main

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Environment    string   `mapstructure:"ENVIRONMENT"`
	Version        string   `mapstructure:"VERSION"`
	TrustedOrigins []string `mapstructure:"TRUSTED_ORIGINS"`
	TLSCertFile    string   `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile     string   `mapstructure:"TLS_KEY_FILE"`
	Timezone       string   `mapstructure:"TIMEZONE"`

	DBHost         string        `mapstructure:"POSTGRES_HOST"`
	DBPort         string        `mapstructure:"POSTGRES_PORT"`
	DBUser         string        `mapstructure:"POSTGRES_USER"`
	DBPassword     string        `mapstructure:"POSTGRES_PASSWORD"`
	DBName         string        `mapstructure:"POSTGRES_DB"`
	DBMaxOpenConns int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBMaxIdleTime  time.Duration `mapstructure:"DB_MAX_IDLE_TIME"`
	MigrationsPath string        `mapstructure:"MIGRATIONS_PATH"`

	MailHost     string `mapstructure:"MAIL_HOST"`
	MailPort     int    `mapstructure:"MAIL_PORT"`
	MailUser     string `mapstructure:"MAIL_USER"`
	MailPassword string `mapstructure:"MAIL_PASSWORD"`
	MailSender   string `mapstructure:"MAIL_SENDER"`

	MQHost     string `mapstructure:"RABBITMQ_HOST"`
	MQPort     string `mapstructure:"RABBITMQ_PORT"`
	MQUser     string `mapstructure:"RABBITMQ_USER"`
	MQPassword string `mapstructure:"RABBITMQ_PASSWORD"`

	RateLimitRPS     float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int     `mapstructure:"RATE_LIMIT_BURST"`
	RateLimitEnabled bool    `mapstructure:"RATE_LIMIT_ENABLED"`

	AdminName     string `mapstructure:"ADMIN_NAME"`
	AdminEmail    string `mapstructure:"ADMIN_EMAIL"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`
}

var configDefaults = map[string]any{
	"PORT":               "4000",
	"ENVIRONMENT":        "development",
	"VERSION":            "1.0.0",
	"TRUSTED_ORIGINS":    []string{},
	"TLS_CERT_FILE":      "",
	"TLS_KEY_FILE":       "",
	"TIMEZONE":           "UTC",
	"POSTGRES_HOST":      "localhost",
	"POSTGRES_PORT":      "5432",
	"POSTGRES_USER":      "",
	"POSTGRES_PASSWORD":  "",
	"POSTGRES_DB":        "",
	"DB_MAX_OPEN_CONNS":  25,
	"DB_MAX_IDLE_CONNS":  25,
	"DB_MAX_IDLE_TIME":   15 * time.Minute,
	"MIGRATIONS_PATH":    "file://migrations",
	"MAIL_HOST":          "localhost",
	"MAIL_PORT":          1025,
	"MAIL_USER":          "",
	"MAIL_PASSWORD":      "",
	"MAIL_SENDER":        "Quillpost <no-reply@quillpost.local>",
	"RABBITMQ_HOST":      "localhost",
	"RABBITMQ_PORT":      "5672",
	"RABBITMQ_USER":      "guest",
	"RABBITMQ_PASSWORD":  "guest",
	"RATE_LIMIT_RPS":     2.0,
	"RATE_LIMIT_BURST":   4,
	"RATE_LIMIT_ENABLED": true,
	"ADMIN_NAME":         "",
	"ADMIN_EMAIL":        "",
	"ADMIN_PASSWORD":     "",
}

// loadConfig reads the .env file at path. Environment variables override file values and unset
// keys fall back to configDefaults.
func loadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	for key, value := range configDefaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	for i := range config.TrustedOrigins {
		config.TrustedOrigins[i] = strings.TrimSpace(config.TrustedOrigins[i])
	}

	return &config, nil
}

// location resolves TIMEZONE, the zone calendar-day search filters are interpreted in.
func (c *Config) location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}
