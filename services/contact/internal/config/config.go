package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location. The file is optional;
// every field can come from the environment instead.
const ConfigPath = "config.yaml"

const (
	defaultPort        = "8000"
	defaultOriginCount = 10
)

// FileConfig represents configuration loaded from YAML and the environment.
type FileConfig struct {
	Port              string   `yaml:"port"`
	LogLevel          string   `yaml:"logLevel"`
	DatabaseURL       string   `yaml:"databaseURL"`
	DBMaxOpenConns    int      `yaml:"dbMaxOpenConns"`
	DBTimeout         string   `yaml:"dbTimeout"`
	WebhookURL        string   `yaml:"webhookURL"`
	WebhookTimeout    string   `yaml:"webhookTimeout"`
	EmailSubject      string   `yaml:"emailSubject"`
	SenderName        string   `yaml:"senderName"`
	SenderEmail       string   `yaml:"senderEmail"`
	RecipientName     string   `yaml:"recipientName"`
	RecipientEmail    string   `yaml:"recipientEmail"`
	SMTPServer        string   `yaml:"smtpServer"`
	SMTPPort          int      `yaml:"smtpPort"`
	SMTPUsername      string   `yaml:"smtpUsername"`
	SMTPPassword      string   `yaml:"smtpPassword"`
	SMTPTimeout       string   `yaml:"smtpTimeout"`
	AllowedOrigins    []string `yaml:"allowedOrigins"`
	TrustedProxyCIDRs []string `yaml:"trustedProxyCidrs"`
	RedisAddr         string   `yaml:"redisAddr"`
	RedisPassword     string   `yaml:"redisPassword"`
	AlertPrefix       string   `yaml:"alertPrefix"`
}

// Load reads config from path (defaults to config.yaml), then applies
// environment overrides. A missing file is not an error.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	overrideString(&cfg.Port, "PORT")
	overrideString(&cfg.LogLevel, "LOG_LEVEL")
	overrideString(&cfg.DatabaseURL, "POSTGRES_URL")
	overrideString(&cfg.DBTimeout, "DB_TIMEOUT")
	overrideString(&cfg.WebhookURL, "DISCORD_WEBHOOK_URL")
	overrideString(&cfg.WebhookTimeout, "WEBHOOK_TIMEOUT")
	overrideString(&cfg.EmailSubject, "EMAIL_SUBJECT")
	overrideString(&cfg.SenderName, "SENDER_NAME")
	overrideString(&cfg.SenderEmail, "SENDER_EMAIL")
	overrideString(&cfg.RecipientName, "RECIPIENT_NAME")
	overrideString(&cfg.RecipientEmail, "RECIPIENT_EMAIL")
	overrideString(&cfg.SMTPServer, "SMTP_SERVER")
	overrideString(&cfg.SMTPUsername, "SMTP_USERNAME")
	overrideString(&cfg.SMTPPassword, "SMTP_PASSWORD")
	overrideString(&cfg.SMTPTimeout, "SMTP_TIMEOUT")
	overrideString(&cfg.RedisAddr, "REDIS_ADDR")
	overrideString(&cfg.RedisPassword, "REDIS_PASSWORD")
	overrideString(&cfg.AlertPrefix, "ALERT_PREFIX")
	if err := overrideInt(&cfg.SMTPPort, "SMTP_PORT"); err != nil {
		return cfg, err
	}
	if err := overrideInt(&cfg.DBMaxOpenConns, "DB_MAX_OPEN_CONNS"); err != nil {
		return cfg, err
	}
	if v := os.Getenv("TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitList(v)
	}
	origins, err := originsFromEnv()
	if err != nil {
		return cfg, err
	}
	if len(origins) > 0 {
		cfg.AllowedOrigins = origins
	}

	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("config: databaseURL is required (set POSTGRES_URL)")
	}
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		return errors.New("config: webhookURL is required (set DISCORD_WEBHOOK_URL)")
	}
	u, err := url.Parse(cfg.WebhookURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("config: webhookURL %q must be an absolute http(s) URL", cfg.WebhookURL)
	}
	if strings.TrimSpace(cfg.SMTPServer) == "" {
		return errors.New("config: smtpServer is required (set SMTP_SERVER)")
	}
	if strings.TrimSpace(cfg.SenderEmail) == "" {
		return errors.New("config: senderEmail is required (set SENDER_EMAIL)")
	}
	if strings.TrimSpace(cfg.RecipientEmail) == "" {
		return errors.New("config: recipientEmail is required (set RECIPIENT_EMAIL)")
	}
	if cfg.SMTPPort < 0 || cfg.SMTPPort > 65535 {
		return fmt.Errorf("config: smtpPort %d out of range", cfg.SMTPPort)
	}
	if cfg.DBMaxOpenConns < 0 {
		return errors.New("config: dbMaxOpenConns must be >= 0")
	}
	for name, raw := range map[string]string{
		"dbTimeout":      cfg.DBTimeout,
		"webhookTimeout": cfg.WebhookTimeout,
		"smtpTimeout":    cfg.SMTPTimeout,
	} {
		if _, err := ParseTimeout(name, raw); err != nil {
			return err
		}
	}
	return nil
}

// ParseTimeout parses an optional positive duration string. Empty means 0 (use default).
func ParseTimeout(name, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", name, err)
	}
	if dur <= 0 {
		return 0, fmt.Errorf("invalid %s duration: must be positive", name)
	}
	return dur, nil
}

// originsFromEnv reads ORIGINS_URL_1..ORIGINS_URL_N, N = ORIGINS_URL_COUNT
// (default 10). Unset slots are skipped; order is preserved.
func originsFromEnv() ([]string, error) {
	count := defaultOriginCount
	if v := strings.TrimSpace(os.Getenv("ORIGINS_URL_COUNT")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("config: invalid ORIGINS_URL_COUNT %q", v)
		}
		count = n
	}
	var origins []string
	for i := 1; i <= count; i++ {
		if v := strings.TrimSpace(os.Getenv(fmt.Sprintf("ORIGINS_URL_%d", i))); v != "" {
			origins = append(origins, v)
		}
	}
	return origins, nil
}

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: invalid %s %q", key, v)
	}
	*dst = n
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
