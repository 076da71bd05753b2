package recurring

import (
	"github.com/justinhw1987/invoiceflow/internal/delivery"
	"github.com/justinhw1987/invoiceflow/internal/recurring/repository"
	"github.com/justinhw1987/invoiceflow/internal/recurring/service"
	"go.uber.org/fx"
)

var Module = fx.Module("recurring.service",
	fx.Provide(repository.Provide),
	fx.Provide(
		func(d *delivery.Service) service.Deliverer { return d },
		service.New,
	),
)
