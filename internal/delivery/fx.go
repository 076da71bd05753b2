package delivery

import (
	authdomain "github.com/justinhw1987/invoiceflow/internal/auth/domain"
	invoicedomain "github.com/justinhw1987/invoiceflow/internal/invoice/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("delivery",
	fx.Provide(
		func(s authdomain.Service) UserLookup { return s },
		func(s invoicedomain.Service) LinkAttacher { return s },
		NewService,
	),
)
