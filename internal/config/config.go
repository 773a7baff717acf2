// Package config loads pipemon settings from the environment and an optional
// YAML file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Addr           string        `mapstructure:"addr" validate:"required"`
	AllowMock      bool          `mapstructure:"allow_mock"`
	HealthTTL      time.Duration `mapstructure:"health_ttl" validate:"gt=0"`
	LogLevel       string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat      string        `mapstructure:"log_format" validate:"oneof=text json"`
	TraceExporter  string        `mapstructure:"trace_exporter" validate:"oneof=none stdout"`
	SchemaMappings string        `mapstructure:"schema_mappings"`
	UsageSeed      uint64        `mapstructure:"usage_seed"`

	Salesforce Salesforce `mapstructure:"salesforce"`
	Health     Health     `mapstructure:"health"`
	Mongo      Mongo      `mapstructure:"mongodb"`
	Slack      Slack      `mapstructure:"slack"`
}

// Salesforce holds CRM credentials.
type Salesforce struct {
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	SecurityToken string `mapstructure:"security_token"`
	Domain        string `mapstructure:"domain" validate:"required"`
	ClientID      string `mapstructure:"client_id"`
	ClientSecret  string `mapstructure:"client_secret"`
	LoginURL      string `mapstructure:"login_url" validate:"omitempty,url"`
	APIVersion    string `mapstructure:"api_version" validate:"required"`
}

// Health holds the health-store connection.
type Health struct {
	DatabaseURL string `mapstructure:"database_url"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// Mongo holds the usage-store connection.
type Mongo struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database" validate:"required"`
}

// Slack holds the alert webhook settings.
type Slack struct {
	WebhookURL    string  `mapstructure:"webhook_url" validate:"omitempty,url"`
	Channel       string  `mapstructure:"channel"`
	RatePerSecond float64 `mapstructure:"rate_per_second" validate:"gte=0"`
}

// env maps viper keys to the environment variables that set them.
var env = map[string]string{
	"addr":                      "PIPEMON_ADDR",
	"allow_mock":                "PIPEMON_ALLOW_MOCK",
	"health_ttl":                "PIPEMON_HEALTH_TTL",
	"log_level":                 "PIPEMON_LOG_LEVEL",
	"log_format":                "PIPEMON_LOG_FORMAT",
	"trace_exporter":            "PIPEMON_TRACE_EXPORTER",
	"schema_mappings":           "PIPEMON_SCHEMA_MAPPINGS",
	"usage_seed":                "PIPEMON_USAGE_SEED",
	"salesforce.username":       "SALESFORCE_USERNAME",
	"salesforce.password":       "SALESFORCE_PASSWORD",
	"salesforce.security_token": "SALESFORCE_SECURITY_TOKEN",
	"salesforce.domain":         "SALESFORCE_DOMAIN",
	"salesforce.client_id":      "SALESFORCE_CLIENT_ID",
	"salesforce.client_secret":  "SALESFORCE_CLIENT_SECRET",
	"salesforce.login_url":      "SALESFORCE_LOGIN_URL",
	"salesforce.api_version":    "SALESFORCE_API_VERSION",
	"health.database_url":       "HEALTH_DATABASE_URL",
	"health.auto_migrate":       "HEALTH_AUTO_MIGRATE",
	"mongodb.uri":               "MONGODB_URI",
	"mongodb.database":          "MONGODB_DATABASE",
	"slack.webhook_url":         "SLACK_WEBHOOK_URL",
	"slack.channel":             "SLACK_CHANNEL",
	"slack.rate_per_second":     "SLACK_RATE_PER_SECOND",
}

var defaults = map[string]any{
	"addr":                   ":8000",
	"allow_mock":             true,
	"health_ttl":             60 * time.Second,
	"log_level":              "info",
	"log_format":             "text",
	"trace_exporter":         "none",
	"salesforce.domain":      "test",
	"salesforce.api_version": "v59.0",
	"health.auto_migrate":    true,
	"mongodb.database":       "dcl_demo",
	"slack.rate_per_second":  1.0,
}

// FileEnv names the variable pointing at an optional YAML config file.
const FileEnv = "PIPEMON_CONFIG"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads configuration from environment variables with sensible defaults.
// When path is empty, PIPEMON_CONFIG is consulted; environment variables
// override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", name, err)
		}
	}

	if path == "" {
		if err := v.BindEnv("config_file", FileEnv); err != nil {
			return nil, fmt.Errorf("bind %s: %w", FileEnv, err)
		}
		path = v.GetString("config_file")
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", describe(err))
	}
	return &cfg, nil
}

// describe rewrites validator errors in terms of the environment variables
// that set the offending fields.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fieldName(fe.StructNamespace()), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

var structFields = map[string]string{
	"Config.Addr":                  "addr",
	"Config.HealthTTL":             "health_ttl",
	"Config.LogLevel":              "log_level",
	"Config.LogFormat":             "log_format",
	"Config.TraceExporter":         "trace_exporter",
	"Config.Salesforce.Domain":     "salesforce.domain",
	"Config.Salesforce.LoginURL":   "salesforce.login_url",
	"Config.Salesforce.APIVersion": "salesforce.api_version",
	"Config.Mongo.Database":        "mongodb.database",
	"Config.Slack.WebhookURL":      "slack.webhook_url",
	"Config.Slack.RatePerSecond":   "slack.rate_per_second",
}

func fieldName(ns string) string {
	if key, ok := structFields[ns]; ok {
		return env[key]
	}
	return ns
}
