package email

import (
	"github.com/justinhw1987/invoiceflow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

// NewFromConfig returns the SMTP sender. Credentials are looked up per send,
// so a provider built before SMTP is configured starts working after reload.
func NewFromConfig(integrations *config.IntegrationsHolder, log *zap.Logger) Provider {
	return NewSMTP(integrations, log)
}
