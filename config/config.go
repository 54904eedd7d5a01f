package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Slack      SlackConfig      `yaml:"slack"`
	LogLevel   string           `yaml:"log_level"`
}

// WorkerPoolConfig holds the configuration for the alert worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// IngestConfig holds the activity feed poller configuration.
type IngestConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
	HTTPProxy       string        `yaml:"http_proxy"`
	Timezone        string        `yaml:"timezone"`
	Request         IngestRequest `yaml:"request"`
}

// IngestRequest defines the HTTP request for the activity feed.
type IngestRequest struct {
	URL      string            `yaml:"url"`
	Headers  map[string]string `yaml:"headers"`
	PageSize int               `yaml:"pageSize"`
	Payload  map[string]any    `yaml:"payload"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	// EnforceNonOverlap installs an exclusion constraint on attachments so
	// the database rejects overlapping intervals at one gear and hook.
	// Postgres only.
	EnforceNonOverlap bool `yaml:"enforce_non_overlap"`
	Debug             bool `yaml:"debug"`
}

// AlertsConfig controls the periodic due-plan sweep.
type AlertsConfig struct {
	Schedule  string  `yaml:"schedule"`
	WarnRatio float64 `yaml:"warn_ratio"`
}

// MQTTConfig configures the MQTT alert publisher. An empty broker disables it.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SlackConfig configures the Slack digest. An empty webhook URL disables it.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "file:gear.db?_foreign_keys=on"
	}

	if c.Ingest.IntervalSeconds <= 0 {
		c.Ingest.IntervalSeconds = 60
	}
	c.Ingest.Interval = time.Duration(c.Ingest.IntervalSeconds) * time.Second
	if c.Ingest.Request.PageSize <= 0 {
		c.Ingest.Request.PageSize = 100
	}
	if c.Ingest.Timezone == "" {
		c.Ingest.Timezone = "UTC"
	}

	if c.Push.TTL <= 0 {
		c.Push.TTL = 3600
	}

	if c.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		c.WorkerPool.Size = 1
	}

	if c.Alerts.Schedule == "" {
		c.Alerts.Schedule = "0 7 * * *"
	}
	if c.Alerts.WarnRatio <= 0 {
		c.Alerts.WarnRatio = 0.05
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "geard"
	}
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "gear/alerts"
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	var errs []string
	if c.Ingest.Enabled && c.Ingest.Request.URL == "" {
		errs = append(errs, "ingest.request.url is required when ingest is enabled")
	}
	if _, err := time.LoadLocation(c.Ingest.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("ingest.timezone: %v", err))
	}
	if _, err := cron.ParseStandard(c.Alerts.Schedule); err != nil {
		errs = append(errs, fmt.Sprintf("alerts.schedule: %v", err))
	}
	if c.Alerts.WarnRatio >= 1 {
		errs = append(errs, "alerts.warn_ratio must be below 1")
	}
	if (c.Push.PublicKey == "") != (c.Push.PrivateKey == "") {
		errs = append(errs, "push needs both vapid_public_key and vapid_private_key")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("log_level: %v", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
