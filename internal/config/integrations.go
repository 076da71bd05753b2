package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Integrations carries the credentials of the external collaborators.
type Integrations struct {
	Stripe StripeConfig `mapstructure:"stripe"`
	SMTP   SMTPConfig   `mapstructure:"smtp"`
	Sheets SheetsConfig `mapstructure:"sheets"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	APIBaseURL    string `mapstructure:"api_base_url"`
	SuccessURL    string `mapstructure:"success_url"`
}

// PaymentLinksEnabled reports whether outbound Stripe calls can be made.
func (c StripeConfig) PaymentLinksEnabled() bool {
	return strings.TrimSpace(c.SecretKey) != ""
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
}

func (c SMTPConfig) Enabled() bool {
	return strings.TrimSpace(c.Host) != "" && strings.TrimSpace(c.From) != ""
}

type SheetsConfig struct {
	CredentialsJSON string `mapstructure:"credentials_json"`
	CredentialsFile string `mapstructure:"credentials_file"`
	SpreadsheetID   string `mapstructure:"spreadsheet_id"`
	SheetName       string `mapstructure:"sheet_name"`
}

func (c SheetsConfig) Enabled() bool {
	hasCreds := strings.TrimSpace(c.CredentialsJSON) != "" || strings.TrimSpace(c.CredentialsFile) != ""
	return hasCreds && strings.TrimSpace(c.SpreadsheetID) != ""
}

func defaultIntegrations() Integrations {
	return Integrations{
		Stripe: StripeConfig{
			APIBaseURL: "https://api.stripe.com",
		},
		SMTP: SMTPConfig{
			Port:     587,
			FromName: "Invoices",
		},
		Sheets: SheetsConfig{
			SheetName: "Invoices",
		},
	}
}

// IntegrationsHolder keeps the current integration credentials and swaps them
// atomically when the backing file changes or Reload is called.
type IntegrationsHolder struct {
	v       *viper.Viper
	log     *zap.Logger
	current atomic.Value // holds Integrations
}

func NewIntegrationsHolder(cfg Config, log *zap.Logger) (*IntegrationsHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	v := viper.New()

	if cfg.IntegrationsFile != "" {
		v.SetConfigFile(cfg.IntegrationsFile)
	} else {
		v.SetConfigName("integrations")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/invoiceflow")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("INVOICEFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setIntegrationDefaults(v, defaultIntegrations())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	current, err := decodeIntegrations(v)
	if err != nil {
		return nil, err
	}

	holder := &IntegrationsHolder{
		v:   v,
		log: log.Named("config.integrations"),
	}
	holder.current.Store(current)

	if cfg.IntegrationsWatch && v.ConfigFileUsed() != "" {
		v.OnConfigChange(func(e fsnotify.Event) {
			if err := holder.apply(); err != nil {
				holder.log.Warn("integrations reload ignored", zap.String("file", e.Name), zap.Error(err))
				return
			}
			holder.log.Info("integrations reloaded", zap.String("file", e.Name))
		})
		v.WatchConfig()
	}

	return holder, nil
}

// NewStaticIntegrations returns a holder that never reloads.
func NewStaticIntegrations(value Integrations) *IntegrationsHolder {
	holder := &IntegrationsHolder{log: zap.NewNop()}
	holder.current.Store(value)
	return holder
}

func (h *IntegrationsHolder) Get() Integrations {
	return h.current.Load().(Integrations)
}

// Reload re-reads the integrations file and environment. The previous value
// stays in place when the new one does not validate.
func (h *IntegrationsHolder) Reload() error {
	if h.v == nil {
		return nil
	}
	if h.v.ConfigFileUsed() != "" {
		if err := h.v.ReadInConfig(); err != nil {
			return err
		}
	}
	return h.apply()
}

func (h *IntegrationsHolder) apply() error {
	updated, err := decodeIntegrations(h.v)
	if err != nil {
		return err
	}
	h.current.Store(updated)
	return nil
}

func decodeIntegrations(v *viper.Viper) (Integrations, error) {
	var out Integrations
	if err := v.Unmarshal(&out); err != nil {
		return Integrations{}, err
	}
	out.Stripe.APIBaseURL = strings.TrimRight(strings.TrimSpace(out.Stripe.APIBaseURL), "/")
	if err := validateIntegrations(out); err != nil {
		return Integrations{}, err
	}
	return out, nil
}

func validateIntegrations(cfg Integrations) error {
	if cfg.SMTP.Enabled() && (cfg.SMTP.Port <= 0 || cfg.SMTP.Port > 65535) {
		return errors.New("smtp.port must be between 1 and 65535")
	}
	if cfg.Stripe.APIBaseURL == "" {
		return errors.New("stripe.api_base_url cannot be empty")
	}
	return nil
}

func setIntegrationDefaults(v *viper.Viper, d Integrations) {
	v.SetDefault("stripe.secret_key", d.Stripe.SecretKey)
	v.SetDefault("stripe.webhook_secret", d.Stripe.WebhookSecret)
	v.SetDefault("stripe.api_base_url", d.Stripe.APIBaseURL)
	v.SetDefault("stripe.success_url", d.Stripe.SuccessURL)
	v.SetDefault("smtp.host", d.SMTP.Host)
	v.SetDefault("smtp.port", d.SMTP.Port)
	v.SetDefault("smtp.username", d.SMTP.Username)
	v.SetDefault("smtp.password", d.SMTP.Password)
	v.SetDefault("smtp.from", d.SMTP.From)
	v.SetDefault("smtp.from_name", d.SMTP.FromName)
	v.SetDefault("sheets.credentials_json", d.Sheets.CredentialsJSON)
	v.SetDefault("sheets.credentials_file", d.Sheets.CredentialsFile)
	v.SetDefault("sheets.spreadsheet_id", d.Sheets.SpreadsheetID)
	v.SetDefault("sheets.sheet_name", d.Sheets.SheetName)
}
