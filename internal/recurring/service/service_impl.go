package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/justinhw1987/invoiceflow/internal/clock"
	"github.com/justinhw1987/invoiceflow/internal/config"
	customerdomain "github.com/justinhw1987/invoiceflow/internal/customer/domain"
	"github.com/justinhw1987/invoiceflow/internal/delivery"
	invoicedomain "github.com/justinhw1987/invoiceflow/internal/invoice/domain"
	"github.com/justinhw1987/invoiceflow/internal/invoice/sequence"
	invoiceservice "github.com/justinhw1987/invoiceflow/internal/invoice/service"
	obsmetrics "github.com/justinhw1987/invoiceflow/internal/observability/metrics"
	"github.com/justinhw1987/invoiceflow/internal/recurring/domain"
	"github.com/justinhw1987/invoiceflow/internal/usercontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const numberingAttempts = 5

// Deliverer sends a freshly generated invoice. It is optional.
type Deliverer interface {
	DeliverInvoice(ctx context.Context, inv *invoicedomain.Invoice, opts delivery.Options) delivery.Result
}

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Config       config.Config
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	CustomerRepo customerdomain.Repository
	InvoiceSvc   invoicedomain.Service
	Delivery     Deliverer           `optional:"true"`
	Metrics      *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	location     *time.Location
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	customerRepo customerdomain.Repository
	invoiceSvc   invoicedomain.Service
	delivery     Deliverer
	metrics      *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("recurring.service"),
		location:     p.Config.Location(),
		genID:        p.GenID,
		clock:        clk,
		repo:         p.Repo,
		customerRepo: p.CustomerRepo,
		invoiceSvc:   p.InvoiceSvc,
		delivery:     p.Delivery,
		metrics:      p.Metrics,
	}
}

type validated struct {
	customerID snowflake.ID
	name       string
	frequency  domain.Frequency
	startDate  string
	endDate    *string
	items      []invoicedomain.ItemInput
}

func validate(customerID, name, frequency, startDate string, endDate *string, inputs []invoicedomain.ItemInput) (*validated, error) {
	out := &validated{}

	id, err := snowflake.ParseString(strings.TrimSpace(customerID))
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidCustomer
	}
	out.customerID = id

	out.name = strings.TrimSpace(name)
	if out.name == "" {
		return nil, domain.ErrInvalidName
	}

	if out.frequency, err = domain.ParseFrequency(frequency); err != nil {
		return nil, err
	}

	if out.startDate, err = invoiceservice.ValidateDate(startDate); err != nil {
		return nil, domain.ErrInvalidStartDate
	}

	if endDate != nil && strings.TrimSpace(*endDate) != "" {
		end, err := invoiceservice.ValidateDate(*endDate)
		if err != nil || end < out.startDate {
			return nil, domain.ErrInvalidEndDate
		}
		out.endDate = &end
	}

	if out.items, err = invoiceservice.ValidateItems(inputs); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateTemplateRequest) (*domain.Template, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidUser
	}

	v, err := validate(req.CustomerID, req.Name, req.Frequency, req.StartDate, req.EndDate, req.Items)
	if err != nil {
		return nil, err
	}

	customer, err := s.customerRepo.FindByID(ctx, s.db, userID, v.customerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, domain.ErrCustomerNotFound
	}

	now := s.clock.Now().UTC()
	tmpl := &domain.Template{
		ID:              s.genID.Generate(),
		UserID:          userID,
		CustomerID:      v.customerID,
		Name:            v.name,
		Frequency:       v.frequency,
		StartDate:       v.startDate,
		EndDate:         v.endDate,
		NextInvoiceDate: v.startDate,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.IsActive != nil {
		tmpl.IsActive = *req.IsActive
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, tmpl); err != nil {
			return err
		}
		return s.repo.InsertItems(ctx, tx, s.buildItems(tmpl.ID, v.items, now))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("recurring template created",
		zap.String("user_id", userID.String()),
		zap.String("template_id", tmpl.ID.String()),
		zap.String("frequency", string(tmpl.Frequency)),
		zap.String("next_invoice_date", tmpl.NextInvoiceDate),
	)
	return s.load(ctx, s.db, userID, tmpl.ID)
}

func (s *Service) List(ctx context.Context) ([]domain.Template, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidUser
	}

	headers, err := s.repo.List(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	return s.withItems(ctx, headers)
}

func (s *Service) GetByID(ctx context.Context, rawID string) (*domain.Template, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidUser
	}
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, s.db, userID, id)
}

func (s *Service) Update(ctx context.Context, req domain.UpdateTemplateRequest) (*domain.Template, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidUser
	}
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	v, err := validate(req.CustomerID, req.Name, req.Frequency, req.StartDate, req.EndDate, req.Items)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, userID, id, true)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}

		customer, err := s.customerRepo.FindByID(ctx, tx, userID, v.customerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return domain.ErrCustomerNotFound
		}

		// A schedule that never produced an invoice follows its start date.
		if current.LastInvoiceDate == nil && current.StartDate != v.startDate {
			current.NextInvoiceDate = v.startDate
		}

		now := s.clock.Now().UTC()
		current.CustomerID = v.customerID
		current.Name = v.name
		current.Frequency = v.frequency
		current.StartDate = v.startDate
		current.EndDate = v.endDate
		if req.IsActive != nil {
			current.IsActive = *req.IsActive
		}
		current.UpdatedAt = now

		if err := s.repo.UpdateHeader(ctx, tx, current); err != nil {
			return err
		}
		if err := s.repo.DeleteItems(ctx, tx, id); err != nil {
			return err
		}
		return s.repo.InsertItems(ctx, tx, s.buildItems(id, v.items, now))
	})
	if err != nil {
		return nil, err
	}

	return s.load(ctx, s.db, userID, id)
}

func (s *Service) Delete(ctx context.Context, rawID string) error {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return domain.ErrInvalidUser
	}
	id, err := parseID(rawID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, userID, id, true)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		deleted, err := s.repo.Delete(ctx, tx, userID, id)
		if err != nil {
			return err
		}
		if !deleted {
			return domain.ErrNotFound
		}
		s.log.Info("recurring template deleted",
			zap.String("user_id", userID.String()),
			zap.String("template_id", id.String()),
		)
		return nil
	})
}

func (s *Service) Generate(ctx context.Context, rawID string) (*domain.GenerateResult, error) {
	return s.generate(ctx, rawID, "")
}

func (s *Service) GenerateDue(ctx context.Context, rawID, dueDate string) (*domain.GenerateResult, error) {
	if _, err := time.Parse(clock.DateLayout, dueDate); err != nil {
		return nil, invoicedomain.ErrInvalidDate
	}
	return s.generate(ctx, rawID, dueDate)
}

// generate checks dueDate against the locked template when it is set.
func (s *Service) generate(ctx context.Context, rawID, dueDate string) (*domain.GenerateResult, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidUser
	}
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}

	today := clock.Today(s.clock, s.location)
	todayTime, err := time.ParseInLocation(clock.DateLayout, today, time.UTC)
	if err != nil {
		return nil, err
	}

	var invoiceID snowflake.ID
	err = sequence.RetryOnConflict(ctx, numberingAttempts, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			tmpl, err := s.repo.FindByID(ctx, tx, userID, id, true)
			if err != nil {
				return err
			}
			if tmpl == nil {
				return domain.ErrNotFound
			}
			if !tmpl.IsActive {
				return domain.ErrTemplateInactive
			}
			if dueDate != "" && tmpl.NextInvoiceDate != dueDate {
				return domain.ErrAlreadyGenerated
			}

			items, err := s.repo.ListItems(ctx, tx, []snowflake.ID{id})
			if err != nil {
				return err
			}
			tmpl.Items = items[id]

			inv, err := s.invoiceSvc.Materialize(ctx, tx, invoicedomain.MaterializeRequest{
				UserID:             userID,
				CustomerID:         tmpl.CustomerID,
				RecurringInvoiceID: &tmpl.ID,
				Date:               today,
				Items:              tmpl.Snapshot(),
			})
			if err != nil {
				return err
			}

			next, err := domain.NextOccurrence(tmpl.Frequency, todayTime)
			if err != nil {
				return err
			}
			if err := s.repo.Advance(ctx, tx, id, next.Format(clock.DateLayout), today, s.clock.Now().UTC()); err != nil {
				return err
			}
			invoiceID = inv.ID
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordInvoiceCreated(ctx, "recurring")
	s.metrics.RecordRecurringGenerated(ctx)

	inv, err := s.invoiceSvc.GetByID(ctx, invoiceID.String())
	if err != nil {
		return nil, err
	}
	tmpl, err := s.load(ctx, s.db, userID, id)
	if err != nil {
		return nil, err
	}

	s.log.Info("recurring invoice generated",
		zap.String("user_id", userID.String()),
		zap.String("template_id", id.String()),
		zap.String("invoice_id", inv.ID.String()),
		zap.Int64("invoice_number", inv.InvoiceNumber),
		zap.String("next_invoice_date", tmpl.NextInvoiceDate),
	)

	result := &domain.GenerateResult{Invoice: inv, Template: tmpl}
	if s.delivery != nil {
		result.Warnings = s.delivery.DeliverInvoice(ctx, inv, delivery.Options{}).Warnings
	}
	return result, nil
}

func (s *Service) ListDue(ctx context.Context, today string, limit int) ([]domain.Template, error) {
	if _, err := time.Parse(clock.DateLayout, today); err != nil {
		return nil, invoicedomain.ErrInvalidDate
	}
	headers, err := s.repo.ListDue(ctx, s.db, today, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Template, 0, len(headers))
	for _, t := range headers {
		out = append(out, *t)
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*domain.Template, error) {
	tmpl, err := s.repo.FindByID(ctx, db, userID, id, false)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, domain.ErrNotFound
	}
	items, err := s.repo.ListItems(ctx, db, []snowflake.ID{id})
	if err != nil {
		return nil, err
	}
	tmpl.Items = items[id]
	tmpl.Recompute()
	return tmpl, nil
}

func (s *Service) withItems(ctx context.Context, headers []*domain.Template) ([]domain.Template, error) {
	ids := make([]snowflake.ID, 0, len(headers))
	for _, t := range headers {
		ids = append(ids, t.ID)
	}
	items, err := s.repo.ListItems(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Template, 0, len(headers))
	for _, t := range headers {
		t.Items = items[t.ID]
		t.Recompute()
		out = append(out, *t)
	}
	return out, nil
}

func (s *Service) buildItems(templateID snowflake.ID, inputs []invoicedomain.ItemInput, now time.Time) []domain.Item {
	items := make([]domain.Item, 0, len(inputs))
	for i, input := range inputs {
		items = append(items, domain.Item{
			ID:                 s.genID.Generate(),
			RecurringInvoiceID: templateID,
			Position:           i,
			Description:        input.Description,
			Amount:             input.Amount,
			CreatedAt:          now,
		})
	}
	return items
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
