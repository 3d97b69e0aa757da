package core

import (
	"fmt"
	"strings"
	"time"
)

type SyncConfig struct {
	BatchSize       int           `koanf:"batch_size" mapstructure:"batch_size"`
	CooldownMinutes int           `koanf:"cooldown_minutes" mapstructure:"cooldown_minutes"`
	CarrierTimeout  time.Duration `koanf:"carrier_timeout" mapstructure:"carrier_timeout"`
}

type NotificationsConfig struct {
	BatchSize      int           `koanf:"batch_size" mapstructure:"batch_size"`
	MaxAttempts    int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `koanf:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `koanf:"max_backoff" mapstructure:"max_backoff"`
}

type WebhookConfig struct {
	Secret          string `koanf:"secret" mapstructure:"secret"`
	SignatureHeader string `koanf:"signature_header" mapstructure:"signature_header"`
}

type Config struct {
	ServiceName           string              `koanf:"service_name" mapstructure:"service_name"`
	ActivityRetentionDays int                 `koanf:"activity_retention_days" mapstructure:"activity_retention_days"`
	Sync                  SyncConfig          `koanf:"sync" mapstructure:"sync"`
	Notifications         NotificationsConfig `koanf:"notifications" mapstructure:"notifications"`
	Webhook               WebhookConfig       `koanf:"webhook" mapstructure:"webhook"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "quotes",
		Sync: SyncConfig{
			BatchSize:       100,
			CooldownMinutes: 60,
			CarrierTimeout:  10 * time.Second,
		},
		Notifications: NotificationsConfig{
			BatchSize:      50,
			MaxAttempts:    5,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     5 * time.Minute,
		},
		Webhook: WebhookConfig{
			SignatureHeader: "x-webhook-signature",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.ActivityRetentionDays < 0 {
		return fmt.Errorf("core: activity_retention_days must not be negative")
	}
	if c.Sync.BatchSize < 0 {
		return fmt.Errorf("core: sync.batch_size must not be negative")
	}
	if c.Sync.CooldownMinutes < 0 {
		return fmt.Errorf("core: sync.cooldown_minutes must not be negative")
	}
	if c.Notifications.MaxAttempts < 0 {
		return fmt.Errorf("core: notifications.max_attempts must not be negative")
	}
	if strings.TrimSpace(c.Webhook.SignatureHeader) == "" {
		return fmt.Errorf("core: webhook.signature_header is required")
	}
	return nil
}

// Cooldown returns the manual-refresh cooldown as a duration.
func (c Config) Cooldown() time.Duration {
	return time.Duration(c.Sync.CooldownMinutes) * time.Minute
}
