package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeIntegrations(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestIntegrationsDefaultsWithoutFile(t *testing.T) {
	holder, err := NewIntegrationsHolder(Config{IntegrationsFile: ""}, zap.NewNop())
	require.NoError(t, err)

	got := holder.Get()
	assert.Equal(t, "https://api.stripe.com", got.Stripe.APIBaseURL)
	assert.Equal(t, 587, got.SMTP.Port)
	assert.Equal(t, "Invoices", got.Sheets.SheetName)
	assert.False(t, got.Stripe.PaymentLinksEnabled())
}

func TestIntegrationsReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "integrations.yml")
	writeIntegrations(t, path, `
stripe:
  secret_key: sk_test_1
  webhook_secret: whsec_1
  api_base_url: https://stripe.test/
smtp:
  host: smtp.test
  port: 2525
  from: billing@studio.test
`)

	holder, err := NewIntegrationsHolder(Config{IntegrationsFile: path}, zap.NewNop())
	require.NoError(t, err)

	got := holder.Get()
	assert.Equal(t, "sk_test_1", got.Stripe.SecretKey)
	assert.Equal(t, "https://stripe.test", got.Stripe.APIBaseURL)
	assert.True(t, got.SMTP.Enabled())
	assert.Equal(t, 2525, got.SMTP.Port)

	writeIntegrations(t, path, `
stripe:
  secret_key: sk_test_2
  webhook_secret: whsec_2
smtp:
  host: smtp.test
  port: 2526
  from: billing@studio.test
`)
	require.NoError(t, holder.Reload())
	got = holder.Get()
	assert.Equal(t, "sk_test_2", got.Stripe.SecretKey)
	assert.Equal(t, "whsec_2", got.Stripe.WebhookSecret)
	assert.Equal(t, "https://api.stripe.com", got.Stripe.APIBaseURL)
	assert.Equal(t, 2526, got.SMTP.Port)
}

func TestIntegrationsReloadKeepsLastGoodValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "integrations.yml")
	writeIntegrations(t, path, `
smtp:
  host: smtp.test
  port: 2525
  from: billing@studio.test
`)
	holder, err := NewIntegrationsHolder(Config{IntegrationsFile: path}, zap.NewNop())
	require.NoError(t, err)

	writeIntegrations(t, path, `
smtp:
  host: smtp.test
  port: 70000
  from: billing@studio.test
`)
	assert.Error(t, holder.Reload())
	assert.Equal(t, 2525, holder.Get().SMTP.Port)
}

func TestStaticIntegrations(t *testing.T) {
	holder := NewStaticIntegrations(Integrations{Stripe: StripeConfig{SecretKey: "sk"}})
	require.NoError(t, holder.Reload())
	assert.True(t, holder.Get().Stripe.PaymentLinksEnabled())
}

func TestLocationFallsBackToUTC(t *testing.T) {
	assert.Equal(t, "UTC", Config{Timezone: "Not/AZone"}.Location().String())
	assert.Equal(t, "UTC", Config{}.Location().String())
}

func TestLoadForcesSecureCookieInProduction(t *testing.T) {
	t.Setenv("AUTH_COOKIE_SECURE", "false")

	t.Setenv("ENVIRONMENT", "Production")
	cfg := Load()
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.AuthCookieSecure)

	t.Setenv("ENVIRONMENT", "development")
	cfg = Load()
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.AuthCookieSecure)

	t.Setenv("AUTH_COOKIE_SECURE", "true")
	assert.True(t, Load().AuthCookieSecure)
}
