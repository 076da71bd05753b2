package auth

import (
	"github.com/justinhw1987/invoiceflow/internal/auth/repository"
	"github.com/justinhw1987/invoiceflow/internal/auth/service"
	"github.com/justinhw1987/invoiceflow/internal/auth/session"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
	session.Module,
)
