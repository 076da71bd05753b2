package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	authdomain "github.com/justinhw1987/invoiceflow/internal/auth/domain"
	"github.com/justinhw1987/invoiceflow/internal/auth/session"
	"github.com/justinhw1987/invoiceflow/internal/clock"
	"github.com/justinhw1987/invoiceflow/internal/config"
	customerdomain "github.com/justinhw1987/invoiceflow/internal/customer/domain"
	"github.com/justinhw1987/invoiceflow/internal/delivery"
	"github.com/justinhw1987/invoiceflow/internal/export"
	invoicedomain "github.com/justinhw1987/invoiceflow/internal/invoice/domain"
	"github.com/justinhw1987/invoiceflow/internal/observability"
	obsmiddleware "github.com/justinhw1987/invoiceflow/internal/observability/logger"
	obsmetrics "github.com/justinhw1987/invoiceflow/internal/observability/metrics"
	obstracing "github.com/justinhw1987/invoiceflow/internal/observability/tracing"
	paymentdomain "github.com/justinhw1987/invoiceflow/internal/payment/domain"
	"github.com/justinhw1987/invoiceflow/internal/ratelimit"
	recurringdomain "github.com/justinhw1987/invoiceflow/internal/recurring/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Module wires the HTTP surface on top of the domain modules installed by
// the serve command.
var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(
		func(d *delivery.Service) InvoiceDeliverer { return d },
		func(w *export.SheetsWriter) SheetsExporter { return w },
	),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// InvoiceDeliverer runs payment link, PDF and email for invoices.
type InvoiceDeliverer interface {
	DeliverInvoice(ctx context.Context, inv *invoicedomain.Invoice, opts delivery.Options) delivery.Result
	SendInvoiceEmail(ctx context.Context, inv *invoicedomain.Invoice) error
	RenderInvoicePDF(ctx context.Context, inv *invoicedomain.Invoice) ([]byte, string, error)
}

type SheetsExporter interface {
	Sync(ctx context.Context, invoices []invoicedomain.Invoice) (export.SyncResult, error)
}

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	clock        clock.Clock
	authsvc      authdomain.Service
	sessions     *session.Manager
	customerSvc  customerdomain.Service
	invoiceSvc   invoicedomain.Service
	recurringSvc recurringdomain.Service
	paymentSvc   paymentdomain.Reconciler
	delivery     InvoiceDeliverer
	sheets       SheetsExporter
	loginLimiter *ratelimit.LoginLimiter
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	Clock        clock.Clock
	Authsvc      authdomain.Service
	Sessions     *session.Manager
	CustomerSvc  customerdomain.Service
	InvoiceSvc   invoicedomain.Service
	RecurringSvc recurringdomain.Service
	PaymentSvc   paymentdomain.Reconciler
	Delivery     InvoiceDeliverer
	Sheets       SheetsExporter
	LoginLimiter *ratelimit.LoginLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		clock:        clk,
		authsvc:      p.Authsvc,
		sessions:     p.Sessions,
		customerSvc:  p.CustomerSvc,
		invoiceSvc:   p.InvoiceSvc,
		recurringSvc: p.RecurringSvc,
		paymentSvc:   p.PaymentSvc,
		delivery:     p.Delivery,
		sheets:       p.Sheets,
		loginLimiter: p.LoginLimiter,
	}

	svc.registerAuthRoutes()
	svc.registerCustomerRoutes()
	svc.registerInvoiceRoutes()
	svc.registerRecurringRoutes()
	svc.registerPaymentRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/login", s.LoginRateLimit(), s.Login)
	auth.POST("/logout", s.Logout)

	authed := auth.Group("", s.AuthRequired())
	{
		authed.GET("/me", s.Me)
		authed.PATCH("/change-password", s.ChangePassword)
		authed.PATCH("/update-profile", s.UpdateProfile)
	}
}

func (s *Server) registerCustomerRoutes() {
	customers := s.engine.Group("/customers", s.AuthRequired())
	{
		customers.GET("", s.ListCustomers)
		customers.POST("", s.CreateCustomer)
		customers.PATCH("/:id", s.UpdateCustomer)
		customers.DELETE("/:id", s.DeleteCustomer)
	}
}

func (s *Server) registerInvoiceRoutes() {
	invoices := s.engine.Group("/invoices", s.AuthRequired())
	{
		invoices.GET("", s.ListInvoices)
		invoices.POST("", s.CreateInvoice)
		invoices.GET("/export", s.ExportInvoices)
		invoices.POST("/export/google-sheets", s.ExportInvoicesToSheets)
		invoices.GET("/:id", s.GetInvoiceByID)
		invoices.PATCH("/:id", s.UpdateInvoice)
		invoices.DELETE("/:id", s.DeleteInvoice)
		invoices.PATCH("/:id/mark-paid", s.MarkInvoicePaid)
		invoices.POST("/:id/email", s.EmailInvoice)
		invoices.GET("/:id/download", s.DownloadInvoice)
	}
}

func (s *Server) registerRecurringRoutes() {
	recurring := s.engine.Group("/recurring-invoices", s.AuthRequired())
	{
		recurring.GET("", s.ListRecurringInvoices)
		recurring.POST("", s.CreateRecurringInvoice)
		recurring.GET("/:id", s.GetRecurringInvoice)
		recurring.PATCH("/:id", s.UpdateRecurringInvoice)
		recurring.DELETE("/:id", s.DeleteRecurringInvoice)
		recurring.POST("/:id/generate", s.GenerateRecurringInvoice)
	}
}

// The webhook authenticates by signature, not by session.
func (s *Server) registerPaymentRoutes() {
	s.engine.POST("/payments/webhook", s.HandlePaymentWebhook)
}
