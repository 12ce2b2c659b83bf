package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DatabaseURL         string        `mapstructure:"database_url"`
	DatabaseURLSecretID string        `mapstructure:"database_url_secret_id"`
	HTTPAddr            string        `mapstructure:"http_addr"`
	SweepInterval       time.Duration `mapstructure:"sweep_interval"`
	Timezone            string        `mapstructure:"timezone"`

	AsaasBaseURL        string `mapstructure:"asaas_base_url"`
	AsaasAPIKey         string `mapstructure:"asaas_api_key"`
	AsaasAPIKeySecretID string `mapstructure:"asaas_api_key_secret_id"`
	AsaasWebhookToken   string `mapstructure:"asaas_webhook_token"`

	TwilioAccountSID        string `mapstructure:"twilio_account_sid"`
	TwilioAuthToken         string `mapstructure:"twilio_auth_token"`
	TwilioAuthTokenSecretID string `mapstructure:"twilio_auth_token_secret_id"`
	TwilioWhatsAppFrom      string `mapstructure:"twilio_whatsapp_from"`
	TelegramBotToken        string `mapstructure:"telegram_bot_token"`
	TelegramOpsChatID       int64  `mapstructure:"telegram_ops_chat_id"`
}

var keys = []string{
	"database_url",
	"database_url_secret_id",
	"http_addr",
	"sweep_interval",
	"timezone",
	"asaas_base_url",
	"asaas_api_key",
	"asaas_api_key_secret_id",
	"asaas_webhook_token",
	"twilio_account_sid",
	"twilio_auth_token",
	"twilio_auth_token_secret_id",
	"twilio_whatsapp_from",
	"telegram_bot_token",
	"telegram_ops_chat_id",
}

// Load reads configuration from the environment. Keys are the upper-case
// field tags, e.g. DATABASE_URL.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("sweep_interval", "0s")
	v.SetDefault("timezone", "America/Sao_Paulo")
	v.SetDefault("asaas_base_url", "https://api.asaas.com")

	// Unmarshal only sees keys viper knows about, env-only keys included.
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("v.BindEnv(%s): %w", k, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("v.Unmarshal: %w", err)
	}
	return cfg, nil
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("time.LoadLocation(%s): %w", c.Timezone, err)
	}
	return loc, nil
}

type SecretGetter interface {
	GetSecret(ctx context.Context, id string) (string, error)
}

// NeedsSecrets reports whether any value must be fetched from the secret store.
func (c *Config) NeedsSecrets() bool {
	return (c.DatabaseURL == "" && c.DatabaseURLSecretID != "") ||
		(c.AsaasAPIKey == "" && c.AsaasAPIKeySecretID != "") ||
		(c.TwilioAuthToken == "" && c.TwilioAuthTokenSecretID != "")
}

// ResolveSecrets fills values that are configured by secret id only.
// Explicit values win.
func (c *Config) ResolveSecrets(ctx context.Context, secrets SecretGetter) error {
	fields := []struct {
		value *string
		id    string
	}{
		{&c.DatabaseURL, c.DatabaseURLSecretID},
		{&c.AsaasAPIKey, c.AsaasAPIKeySecretID},
		{&c.TwilioAuthToken, c.TwilioAuthTokenSecretID},
	}
	for _, f := range fields {
		if *f.value != "" || f.id == "" {
			continue
		}
		v, err := secrets.GetSecret(ctx, f.id)
		if err != nil {
			return fmt.Errorf("secrets.GetSecret(%s): %w", f.id, err)
		}
		*f.value = v
	}
	return nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL or DATABASE_URL_SECRET_ID must be set")
	}
	return nil
}

func (c *Config) WhatsAppEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioWhatsAppFrom != ""
}

func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramOpsChatID != 0
}
