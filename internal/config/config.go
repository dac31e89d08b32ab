// Package config loads and validates the process-wide, environment-driven
// configuration. Config is built once at startup and frozen; nothing in
// the rest of the system mutates it.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/baktainer/baktainer/internal/domain"
)

// Config is the immutable, validated configuration for one process
// lifetime.
type Config struct {
	RuntimeURL string
	Cron       string
	Threads    int
	LogLevel   string
	BackupDir  string
	Compress   bool

	TLSEnabled bool
	CA         string
	Cert       string
	Key        string

	RotationEnabled bool
	RetentionDays   int
	RetentionCount  int
	MinFreeSpaceGB  int

	EncryptionEnabled    bool
	EncryptionKey        string
	EncryptionKeyFile    string
	EncryptionPassphrase string

	NotificationChannels []string
	NotifySuccess        bool
	NotifyFailures       bool
	NotifyWarnings       bool
	NotifyHealth         bool
	NotifySummary        bool
	WebhookURL           string
	SlackWebhookURL      string
	DiscordWebhookURL    string
	TeamsWebhookURL      string

	HealthServerEnabled bool
	HealthPort          int
	HealthBind          string
}

var envKeys = []string{
	"DOCKER_URL", "CRON", "THREADS", "LOG_LEVEL", "BACKUP_DIR", "COMPRESS",
	"SSL", "CA", "CERT", "KEY",
	"ROTATION_ENABLED", "RETENTION_DAYS", "RETENTION_COUNT", "MIN_FREE_SPACE_GB",
	"ENCRYPTION_ENABLED", "ENCRYPTION_KEY", "ENCRYPTION_KEY_FILE", "ENCRYPTION_PASSPHRASE",
	"NOTIFICATION_CHANNELS", "NOTIFY_SUCCESS", "NOTIFY_FAILURES", "NOTIFY_WARNINGS",
	"NOTIFY_HEALTH", "NOTIFY_SUMMARY",
	"WEBHOOK_URL", "SLACK_WEBHOOK_URL", "DISCORD_WEBHOOK_URL", "TEAMS_WEBHOOK_URL",
	"HEALTH_SERVER_ENABLED", "HEALTH_PORT", "HEALTH_BIND",
}

const envPrefix = "BT"

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	v.SetDefault("DOCKER_URL", "unix:///var/run/docker.sock")
	v.SetDefault("CRON", "0 0 * * *")
	v.SetDefault("THREADS", 4)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("BACKUP_DIR", "/backups")
	v.SetDefault("COMPRESS", true)
	v.SetDefault("SSL", false)
	v.SetDefault("ROTATION_ENABLED", true)
	v.SetDefault("RETENTION_DAYS", 30)
	v.SetDefault("RETENTION_COUNT", 0)
	v.SetDefault("MIN_FREE_SPACE_GB", 10)
	v.SetDefault("ENCRYPTION_ENABLED", false)
	v.SetDefault("NOTIFICATION_CHANNELS", "log")
	v.SetDefault("NOTIFY_SUCCESS", false)
	v.SetDefault("NOTIFY_FAILURES", true)
	v.SetDefault("NOTIFY_WARNINGS", true)
	v.SetDefault("NOTIFY_HEALTH", true)
	v.SetDefault("NOTIFY_SUMMARY", false)
	v.SetDefault("HEALTH_SERVER_ENABLED", true)
	v.SetDefault("HEALTH_PORT", 8090)
	v.SetDefault("HEALTH_BIND", "0.0.0.0")

	return v
}

// Load reads the environment, applies defaults, and validates the result.
// Any violation is returned wrapped as a *domain.ConfigError.
func Load() (*Config, error) {
	v := newViper()

	cfg := &Config{
		RuntimeURL:           v.GetString("DOCKER_URL"),
		Cron:                 v.GetString("CRON"),
		Threads:              v.GetInt("THREADS"),
		LogLevel:             strings.ToLower(v.GetString("LOG_LEVEL")),
		BackupDir:            v.GetString("BACKUP_DIR"),
		Compress:             v.GetBool("COMPRESS"),
		TLSEnabled:           v.GetBool("SSL"),
		CA:                   v.GetString("CA"),
		Cert:                 v.GetString("CERT"),
		Key:                  v.GetString("KEY"),
		RotationEnabled:      v.GetBool("ROTATION_ENABLED"),
		RetentionDays:        v.GetInt("RETENTION_DAYS"),
		RetentionCount:       v.GetInt("RETENTION_COUNT"),
		MinFreeSpaceGB:       v.GetInt("MIN_FREE_SPACE_GB"),
		EncryptionEnabled:    v.GetBool("ENCRYPTION_ENABLED"),
		EncryptionKey:        v.GetString("ENCRYPTION_KEY"),
		EncryptionKeyFile:    v.GetString("ENCRYPTION_KEY_FILE"),
		EncryptionPassphrase: v.GetString("ENCRYPTION_PASSPHRASE"),
		NotifySuccess:        v.GetBool("NOTIFY_SUCCESS"),
		NotifyFailures:       v.GetBool("NOTIFY_FAILURES"),
		NotifyWarnings:       v.GetBool("NOTIFY_WARNINGS"),
		NotifyHealth:         v.GetBool("NOTIFY_HEALTH"),
		NotifySummary:        v.GetBool("NOTIFY_SUMMARY"),
		WebhookURL:           v.GetString("WEBHOOK_URL"),
		SlackWebhookURL:      v.GetString("SLACK_WEBHOOK_URL"),
		DiscordWebhookURL:    v.GetString("DISCORD_WEBHOOK_URL"),
		TeamsWebhookURL:      v.GetString("TEAMS_WEBHOOK_URL"),
		HealthServerEnabled:  v.GetBool("HEALTH_SERVER_ENABLED"),
		HealthPort:           v.GetInt("HEALTH_PORT"),
		HealthBind:           v.GetString("HEALTH_BIND"),
	}

	channels := v.GetString("NOTIFICATION_CHANNELS")
	for _, c := range strings.Split(channels, ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			cfg.NotificationChannels = append(cfg.NotificationChannels, c)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if !hasAnyPrefix(c.RuntimeURL, "unix://", "tcp://", "http://", "https://") {
		return domain.NewConfigError("runtime_url", "must begin with unix://, tcp://, http://, or https://", nil)
	}
	if len(strings.Fields(c.Cron)) != 5 {
		return domain.NewConfigError("cron_schedule", "must have exactly 5 whitespace-separated fields", nil)
	}
	if c.Threads < 1 || c.Threads > 50 {
		return domain.NewConfigError("threads", "must be between 1 and 50", nil)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return domain.NewConfigError("log_level", "must be one of debug, info, warn, error", nil)
	}
	if !filepath.IsAbs(c.BackupDir) {
		return domain.NewConfigError("backup_dir", "must be an absolute path", nil)
	}
	if c.TLSEnabled {
		if c.CA == "" || c.Cert == "" || c.Key == "" {
			return domain.NewConfigError("tls", "ca, cert, and key must all be set when tls_enabled is true", nil)
		}
		if err := validateTLSMaterial(c.Cert, c.Key); err != nil {
			return domain.NewConfigError("tls", "invalid certificate/key material", err)
		}
	}
	if c.RetentionDays < 0 || c.RetentionDays > 365 {
		return domain.NewConfigError("retention_days", "must be between 0 and 365", nil)
	}
	if c.RetentionCount < 0 || c.RetentionCount > 1000 {
		return domain.NewConfigError("retention_count", "must be between 0 and 1000", nil)
	}
	if c.MinFreeSpaceGB < 0 || c.MinFreeSpaceGB > 1000 {
		return domain.NewConfigError("min_free_space_gb", "must be between 0 and 1000", nil)
	}
	if c.EncryptionEnabled {
		present := 0
		for _, v := range []string{c.EncryptionKey, c.EncryptionKeyFile, c.EncryptionPassphrase} {
			if v != "" {
				present++
			}
		}
		if present != 1 {
			return domain.NewConfigError("encryption", "exactly one of encryption_key, encryption_key_file, or encryption_passphrase must be set", nil)
		}
	}
	return nil
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func validateTLSMaterial(certPathOrPEM, keyPathOrPEM string) error {
	certPEM, err := readMaybeFile(certPathOrPEM)
	if err != nil {
		return fmt.Errorf("reading cert: %w", err)
	}
	keyPEM, err := readMaybeFile(keyPathOrPEM)
	if err != nil {
		return fmt.Errorf("reading key: %w", err)
	}

	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return fmt.Errorf("cert/key mismatch: %w", err)
	}
	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		return fmt.Errorf("parsing certificate: %w", err)
	}
	now := time.Now()
	if now.Before(leaf.NotBefore) || now.After(leaf.NotAfter) {
		return fmt.Errorf("certificate is not currently valid (not-before %s, not-after %s)", leaf.NotBefore, leaf.NotAfter)
	}
	return nil
}

func readMaybeFile(value string) ([]byte, error) {
	if strings.HasPrefix(value, "-----BEGIN") {
		return []byte(value), nil
	}
	return os.ReadFile(value)
}

// ResolveEncryptionKeyMaterial returns the configured raw key material,
// taken from encryption_key, then encryption_key_file (contents trimmed),
// then encryption_passphrase, and whether it is a passphrase. Turning it
// into the 32-byte AES-256 key is done by encryption.New.
func (c *Config) ResolveEncryptionKeyMaterial() (raw string, isPassphrase bool, err error) {
	switch {
	case c.EncryptionKey != "":
		return c.EncryptionKey, false, nil
	case c.EncryptionKeyFile != "":
		data, readErr := os.ReadFile(c.EncryptionKeyFile)
		if readErr != nil {
			return "", false, fmt.Errorf("reading encryption_key_file: %w", readErr)
		}
		return strings.TrimSpace(string(data)), false, nil
	case c.EncryptionPassphrase != "":
		return c.EncryptionPassphrase, true, nil
	default:
		return "", false, fmt.Errorf("no encryption key material configured")
	}
}

// ParseBoolLabel coerces label-style boolean strings, exported for reuse by
// LabelSchema and tests that construct Config-adjacent fixtures by hand.
func ParseBoolLabel(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value %q", s)
	}
}

// ParseIntLabel is a strict integer parse, exported for reuse by
// LabelSchema.
func ParseIntLabel(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
