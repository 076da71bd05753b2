package scheduler

import (
	obsmetrics "github.com/justinhw1987/invoiceflow/internal/observability/metrics"
	"github.com/justinhw1987/invoiceflow/internal/ratelimit"
	"go.uber.org/fx"
)

// Module is only installed by the recurring run command; the HTTP server
// never generates invoices on its own.
var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(
		func(l *ratelimit.Locker) Locker {
			if l == nil {
				return nil
			}
			return l
		},
		obsmetrics.Invoker,
	),
	fx.Provide(New),
)
