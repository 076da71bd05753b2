package providers

import (
	"github.com/justinhw1987/invoiceflow/internal/providers/email"
	"github.com/justinhw1987/invoiceflow/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
