package payment

import (
	"github.com/justinhw1987/invoiceflow/internal/payment/adapters/stripe"
	"github.com/justinhw1987/invoiceflow/internal/payment/domain"
	"github.com/justinhw1987/invoiceflow/internal/payment/repository"
	paymentservice "github.com/justinhw1987/invoiceflow/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(stripe.NewVerifier),
	fx.Provide(stripe.NewClient),
	fx.Provide(
		func(c *stripe.Client) domain.LinkCreator { return c },
		func(c *stripe.Client) domain.IntentFetcher { return c },
	),
	fx.Provide(paymentservice.NewService),
)
