package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"hawkmon/internal/alerts"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Addr          string        `yaml:"addr"`
	DataDir       string        `yaml:"data_dir"`
	DBPath        string        `yaml:"db_path"`
	DockerSocket  string        `yaml:"docker_socket"`
	Interval      time.Duration `yaml:"interval"`
	Cycles        int           `yaml:"required_cycles"`
	RetentionDays int           `yaml:"retention_days"`
	LogLevel      string        `yaml:"log_level"`
	LogFormat     string        `yaml:"log_format"`

	Metrics MetricsConfig `yaml:"metrics"`

	SMTP     SMTPConfig     `yaml:"smtp"`
	Telegram TelegramConfig `yaml:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook"`
}

// MetricConfig holds one metric type's threshold. Cycles of 0 falls back to
// the global required_cycles.
type MetricConfig struct {
	Threshold float64 `yaml:"threshold"`
	Cycles    int     `yaml:"required_cycles"`
	Enabled   bool    `yaml:"enabled"`
}

type MetricsConfig struct {
	CPU             MetricConfig `yaml:"cpu"`
	Memory          MetricConfig `yaml:"memory"`
	Disk            MetricConfig `yaml:"disk"`
	Network         MetricConfig `yaml:"network"`
	ContainerCPU    MetricConfig `yaml:"container_cpu"`
	ContainerMemory MetricConfig `yaml:"container_memory"`
}

type SMTPConfig struct {
	Host     string   `yaml:"host"`
	Port     int      `yaml:"port"`
	Secure   bool     `yaml:"secure"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

type WebhookConfig struct {
	URL  string `yaml:"url"`
	Type string `yaml:"type"`
}

func Default() Config {
	return Config{
		Addr:          ":9110",
		DataDir:       "./data",
		DockerSocket:  "/var/run/docker.sock",
		Interval:      60 * time.Second,
		Cycles:        3,
		RetentionDays: 30,
		LogLevel:      "info",
		LogFormat:     "json",
		Metrics: MetricsConfig{
			CPU:             MetricConfig{Threshold: 80, Enabled: true},
			Memory:          MetricConfig{Threshold: 80, Enabled: true},
			Disk:            MetricConfig{Threshold: 80, Enabled: true},
			Network:         MetricConfig{Threshold: 1000, Enabled: true},
			ContainerCPU:    MetricConfig{Threshold: 90},
			ContainerMemory: MetricConfig{Threshold: 90},
		},
		SMTP:    SMTPConfig{Port: 465, Secure: true},
		Webhook: WebhookConfig{Type: "http"},
	}
}

// Load reads defaults, then the YAML file at path (if any), then environment
// overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("HAWKMON_CONFIG")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if cfg.DBPath == "" {
		cfg.DBPath = cfg.DataDir + "/hawkmon.db"
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(c *Config) {
	c.Addr = getenv("HAWKMON_ADDR", c.Addr)
	c.DataDir = getenv("HAWKMON_DATA_DIR", c.DataDir)
	c.DBPath = getenv("HAWKMON_DB_PATH", c.DBPath)
	c.DockerSocket = getenv("DOCKER_SOCKET", c.DockerSocket)
	c.Interval = getenvInterval("HAWKMON_INTERVAL", c.Interval)
	c.Cycles = getenvInt("HAWKMON_CYCLES", c.Cycles)
	c.RetentionDays = getenvInt("HAWKMON_RETENTION_DAYS", c.RetentionDays)
	c.LogLevel = getenv("HAWKMON_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getenv("HAWKMON_LOG_FORMAT", c.LogFormat)

	c.Metrics.CPU.Threshold = getenvFloat("HAWKMON_CPU_THRESHOLD", c.Metrics.CPU.Threshold)
	c.Metrics.Memory.Threshold = getenvFloat("HAWKMON_MEM_THRESHOLD", c.Metrics.Memory.Threshold)
	c.Metrics.Disk.Threshold = getenvFloat("HAWKMON_DISK_THRESHOLD", c.Metrics.Disk.Threshold)
	c.Metrics.Network.Threshold = getenvFloat("HAWKMON_NETWORK_THRESHOLD", c.Metrics.Network.Threshold)
	c.Metrics.ContainerCPU.Threshold = getenvFloat("HAWKMON_CONTAINER_CPU_THRESHOLD", c.Metrics.ContainerCPU.Threshold)
	c.Metrics.ContainerMemory.Threshold = getenvFloat("HAWKMON_CONTAINER_MEM_THRESHOLD", c.Metrics.ContainerMemory.Threshold)
	c.Metrics.ContainerCPU.Enabled = getenvBool("HAWKMON_CONTAINER_ALERTS", c.Metrics.ContainerCPU.Enabled)
	c.Metrics.ContainerMemory.Enabled = getenvBool("HAWKMON_CONTAINER_ALERTS", c.Metrics.ContainerMemory.Enabled)

	c.SMTP.Host = getenv("SMTP_HOST", c.SMTP.Host)
	c.SMTP.Port = getenvInt("SMTP_PORT", c.SMTP.Port)
	c.SMTP.Secure = getenvBool("SMTP_SECURE", c.SMTP.Secure)
	c.SMTP.Username = getenv("SMTP_USER", c.SMTP.Username)
	c.SMTP.Password = getenv("SMTP_PASS", c.SMTP.Password)
	c.SMTP.From = getenv("SMTP_FROM", c.SMTP.From)
	if v := os.Getenv("SMTP_TO"); v != "" {
		c.SMTP.To = splitList(v)
	}
	c.Telegram.BotToken = getenv("TELEGRAM_BOT_TOKEN", c.Telegram.BotToken)
	c.Telegram.ChatID = getenv("TELEGRAM_CHAT_ID", c.Telegram.ChatID)
	c.Webhook.URL = getenv("HAWKMON_WEBHOOK_URL", c.Webhook.URL)
	c.Webhook.Type = getenv("HAWKMON_WEBHOOK_TYPE", c.Webhook.Type)
}

func (c Config) Validate() error {
	var errs []error
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %s", c.Interval))
	}
	if c.Cycles < 1 {
		errs = append(errs, fmt.Errorf("required_cycles must be >= 1, got %d", c.Cycles))
	}
	for name, m := range c.Metrics.byType() {
		if m.Cycles < 0 {
			errs = append(errs, fmt.Errorf("metrics.%s.required_cycles must be >= 0, got %d", name, m.Cycles))
		}
		if m.Threshold < 0 {
			errs = append(errs, fmt.Errorf("metrics.%s.threshold must be >= 0, got %v", name, m.Threshold))
		}
	}
	switch c.Webhook.Type {
	case "http", "slack":
	default:
		errs = append(errs, fmt.Errorf("webhook.type must be http or slack, got %q", c.Webhook.Type))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func (m MetricsConfig) byType() map[alerts.MetricType]MetricConfig {
	return map[alerts.MetricType]MetricConfig{
		alerts.TypeCPU:             m.CPU,
		alerts.TypeMemory:          m.Memory,
		alerts.TypeDisk:            m.Disk,
		alerts.TypeNetwork:         m.Network,
		alerts.TypeContainerCPU:    m.ContainerCPU,
		alerts.TypeContainerMemory: m.ContainerMemory,
	}
}

// Thresholds resolves the per-type alerting config, filling in the global
// required cycles where a type does not override it.
func (c Config) Thresholds() alerts.Thresholds {
	out := alerts.Thresholds{}
	for t, m := range c.Metrics.byType() {
		cycles := m.Cycles
		if cycles == 0 {
			cycles = c.Cycles
		}
		out[t] = alerts.MetricConfig{Threshold: m.Threshold, RequiredCycles: cycles, Enabled: m.Enabled}
	}
	return out
}

// ContainersEnabled reports whether any container metric is alerted on.
func (c Config) ContainersEnabled() bool {
	return c.Metrics.ContainerCPU.Enabled || c.Metrics.ContainerMemory.Enabled
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return d
	}
	return n
}

func getenvFloat(k string, d float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return d
	}
	return f
}

// getenvInterval accepts a Go duration ("90s") or plain milliseconds ("60000").
func getenvInterval(k string, d time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	dur, err := time.ParseDuration(v)
	if err != nil {
		return d
	}
	return dur
}

func getenvBool(k string, d bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(k)))
	if v == "" {
		return d
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	return d
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
