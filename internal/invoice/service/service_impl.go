package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/justinhw1987/invoiceflow/internal/clock"
	customerdomain "github.com/justinhw1987/invoiceflow/internal/customer/domain"
	"github.com/justinhw1987/invoiceflow/internal/invoice/domain"
	"github.com/justinhw1987/invoiceflow/internal/invoice/sequence"
	obsmetrics "github.com/justinhw1987/invoiceflow/internal/observability/metrics"
	"github.com/justinhw1987/invoiceflow/internal/usercontext"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const numberingAttempts = 5

var maxItemAmount = decimal.New(1, 10)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	CustomerRepo customerdomain.Repository
	Metrics      *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	customerRepo customerdomain.Repository
	metrics      *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("invoice.service"),
		genID:        p.GenID,
		clock:        clk,
		repo:         p.Repo,
		customerRepo: p.CustomerRepo,
		metrics:      p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateInvoiceRequest) (*domain.Invoice, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidUser
	}

	customerID, err := parseCustomerID(req.CustomerID)
	if err != nil {
		return nil, err
	}
	date, err := ValidateDate(req.Date)
	if err != nil {
		return nil, err
	}
	items, err := ValidateItems(req.Items)
	if err != nil {
		return nil, err
	}

	customer, err := s.customerRepo.FindByID(ctx, s.db, userID, customerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, domain.ErrCustomerNotFound
	}

	var created *domain.Invoice
	err = sequence.RetryOnConflict(ctx, numberingAttempts, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			inv, err := s.Materialize(ctx, tx, domain.MaterializeRequest{
				UserID:     userID,
				CustomerID: customerID,
				Date:       date,
				Items:      items,
			})
			if err != nil {
				return err
			}
			created = inv
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordInvoiceCreated(ctx, "manual")
	s.log.Info("invoice created",
		zap.String("user_id", userID.String()),
		zap.String("invoice_id", created.ID.String()),
		zap.Int64("invoice_number", created.InvoiceNumber),
		zap.Int("items", len(created.Items)),
	)

	return s.load(ctx, s.db, created.ID)
}

// Materialize assigns the next number and writes header and items through tx.
func (s *Service) Materialize(ctx context.Context, tx *gorm.DB, req domain.MaterializeRequest) (*domain.Invoice, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}
	if req.CustomerID == 0 {
		return nil, domain.ErrInvalidCustomer
	}
	if len(req.Items) == 0 {
		return nil, domain.ErrEmptyItems
	}

	number, err := sequence.Next(ctx, tx, req.UserID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	inv := &domain.Invoice{
		ID:                 s.genID.Generate(),
		UserID:             req.UserID,
		CustomerID:         req.CustomerID,
		RecurringInvoiceID: req.RecurringInvoiceID,
		InvoiceNumber:      number,
		Date:               req.Date,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.InsertInvoice(ctx, tx, inv); err != nil {
		return nil, err
	}

	inv.Items = s.buildItems(inv.ID, req.Items, now)
	if err := s.repo.InsertItems(ctx, tx, inv.Items); err != nil {
		return nil, err
	}
	inv.Normalize()
	return inv, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateInvoiceRequest) (*domain.Invoice, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidUser
	}

	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	customerID, err := parseCustomerID(req.CustomerID)
	if err != nil {
		return nil, err
	}
	date, err := ValidateDate(req.Date)
	if err != nil {
		return nil, err
	}
	items, err := ValidateItems(req.Items)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		if current.UserID != userID {
			return domain.ErrForbidden
		}

		customer, err := s.customerRepo.FindByID(ctx, tx, userID, customerID)
		if err != nil {
			return err
		}
		if customer == nil {
			return domain.ErrCustomerNotFound
		}

		existing, err := s.repo.ListItems(ctx, tx, []snowflake.ID{id})
		if err != nil {
			return err
		}
		current.Items = existing[id]
		current.Normalize()

		now := s.clock.Now().UTC()
		replacement := s.buildItems(id, items, now)

		// A payment link is priced at creation; a new total needs a new link.
		if !domain.SumItems(replacement).Equal(current.Amount) {
			current.StripePaymentLinkID = nil
			current.PaymentLinkURL = nil
		}

		current.CustomerID = customerID
		current.Date = date
		if req.IsPaid != nil {
			current.IsPaid = *req.IsPaid
		}
		current.UpdatedAt = now

		if err := s.repo.UpdateHeader(ctx, tx, current); err != nil {
			return err
		}
		if err := s.repo.DeleteItems(ctx, tx, id); err != nil {
			return err
		}
		return s.repo.InsertItems(ctx, tx, replacement)
	})
	if err != nil {
		return nil, err
	}

	return s.load(ctx, s.db, id)
}

func (s *Service) GetByID(ctx context.Context, rawID string) (*domain.Invoice, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidUser
	}
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}

	inv, err := s.load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if inv.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return inv, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Invoice, error) {
	return s.list(ctx, domain.OrderNewestFirst)
}

func (s *Service) ListForExport(ctx context.Context) ([]domain.Invoice, error) {
	return s.list(ctx, domain.OrderByNumber)
}

func (s *Service) list(ctx context.Context, order domain.ListOrder) ([]domain.Invoice, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidUser
	}

	headers, err := s.repo.List(ctx, s.db, userID, order)
	if err != nil {
		return nil, err
	}

	ids := make([]snowflake.ID, 0, len(headers))
	for _, inv := range headers {
		ids = append(ids, inv.ID)
	}
	items, err := s.repo.ListItems(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}

	invoices := make([]domain.Invoice, 0, len(headers))
	for _, inv := range headers {
		inv.Items = items[inv.ID]
		inv.Normalize()
		invoices = append(invoices, *inv)
	}
	return invoices, nil
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
		current, err := s.repo.FindByID(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		if current.UserID != userID {
			return domain.ErrForbidden
		}
		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return err
		}
		s.log.Info("invoice deleted",
			zap.String("user_id", userID.String()),
			zap.String("invoice_id", id.String()),
		)
		return nil
	})
}

// MarkPaid flips the paid flag for one of the caller's invoices. Items are
// left as they are.
func (s *Service) MarkPaid(ctx context.Context, rawID string, isPaid bool) (*domain.Invoice, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidUser
	}
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.SetPaid(ctx, s.db, userID, id, isPaid, s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domain.ErrNotFound
	}
	return s.load(ctx, s.db, id)
}

func (s *Service) SettlePayment(ctx context.Context, id snowflake.ID) (bool, error) {
	if id == 0 {
		return false, domain.ErrInvalidID
	}

	affected, err := s.repo.Settle(ctx, s.db, id, s.clock.Now().UTC())
	if err != nil {
		return false, err
	}
	if affected > 0 {
		return true, nil
	}

	exists, err := s.repo.Exists(ctx, s.db, id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, domain.ErrNotFound
	}
	return false, nil
}

func (s *Service) AttachPaymentLink(ctx context.Context, id snowflake.ID, linkID, url string) error {
	if id == 0 {
		return domain.ErrInvalidID
	}
	return s.repo.SetPaymentLink(ctx, s.db, id, linkID, url, s.clock.Now().UTC())
}

func (s *Service) load(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	inv, err := s.repo.FindByID(ctx, db, id, false)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}

	items, err := s.repo.ListItems(ctx, db, []snowflake.ID{id})
	if err != nil {
		return nil, err
	}
	inv.Items = items[id]
	inv.Normalize()
	return inv, nil
}

func (s *Service) buildItems(invoiceID snowflake.ID, inputs []domain.ItemInput, now time.Time) []domain.Item {
	items := make([]domain.Item, 0, len(inputs))
	for i, input := range inputs {
		items = append(items, domain.Item{
			ID:          s.genID.Generate(),
			InvoiceID:   invoiceID,
			Position:    i,
			Description: input.Description,
			Amount:      input.Amount,
			CreatedAt:   now,
		})
	}
	return items
}

// ValidateItems trims descriptions and checks that every amount is a
// positive value with at most two fractional digits.
func ValidateItems(inputs []domain.ItemInput) ([]domain.ItemInput, error) {
	if len(inputs) == 0 {
		return nil, domain.ErrEmptyItems
	}
	out := make([]domain.ItemInput, 0, len(inputs))
	for _, input := range inputs {
		description := strings.TrimSpace(input.Description)
		if description == "" {
			return nil, domain.ErrInvalidItemDescription
		}
		amount := input.Amount
		if !amount.IsPositive() || !amount.Equal(amount.Round(2)) || amount.GreaterThanOrEqual(maxItemAmount) {
			return nil, domain.ErrInvalidItemAmount
		}
		out = append(out, domain.ItemInput{Description: description, Amount: amount.Round(2)})
	}
	return out, nil
}

// ValidateDate accepts a calendar date in YYYY-MM-DD form.
func ValidateDate(value string) (string, error) {
	value = strings.TrimSpace(value)
	if _, err := time.Parse(clock.DateLayout, value); err != nil {
		return "", domain.ErrInvalidDate
	}
	return value, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func parseCustomerID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidCustomer
	}
	return id, nil
}
