package invoice

import (
	"github.com/justinhw1987/invoiceflow/internal/invoice/repository"
	"github.com/justinhw1987/invoiceflow/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
