package migration

import (
	"github.com/justinhw1987/invoiceflow/internal/config"
	"github.com/justinhw1987/invoiceflow/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if err := Apply(conn); err != nil {
			return err
		}
		return seed.EnsureBootstrapUser(conn, cfg, log)
	}),
)
