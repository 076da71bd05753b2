package customer

import (
	"github.com/justinhw1987/invoiceflow/internal/customer/repository"
	"github.com/justinhw1987/invoiceflow/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
