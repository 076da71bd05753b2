package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateInvoiceRequest struct {
	CustomerID string
	Date       string
	Items      []ItemInput
}

// UpdateInvoiceRequest replaces the header and the full item set. A nil
// IsPaid keeps the current flag.
type UpdateInvoiceRequest struct {
	ID         string
	CustomerID string
	Date       string
	IsPaid     *bool
	Items      []ItemInput
}

// MaterializeRequest creates an invoice inside a transaction owned by the
// caller. Items must already be validated.
type MaterializeRequest struct {
	UserID             snowflake.ID
	CustomerID         snowflake.ID
	RecurringInvoiceID *snowflake.ID
	Date               string
	Items              []ItemInput
}

type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error)
	Update(ctx context.Context, req UpdateInvoiceRequest) (*Invoice, error)
	GetByID(ctx context.Context, id string) (*Invoice, error)
	List(ctx context.Context) ([]Invoice, error)
	ListForExport(ctx context.Context) ([]Invoice, error)
	Delete(ctx context.Context, id string) error
	MarkPaid(ctx context.Context, id string, isPaid bool) (*Invoice, error)

	// SettlePayment marks the invoice paid on behalf of the payment
	// processor. It reports whether the flag changed.
	SettlePayment(ctx context.Context, id snowflake.ID) (bool, error)
	AttachPaymentLink(ctx context.Context, id snowflake.ID, linkID, url string) error
	Materialize(ctx context.Context, tx *gorm.DB, req MaterializeRequest) (*Invoice, error)
}

var (
	ErrInvalidUser            = errors.New("invalid_user")
	ErrInvalidID              = errors.New("invalid_id")
	ErrInvalidCustomer        = errors.New("invalid_customer")
	ErrInvalidDate            = errors.New("invalid_date")
	ErrEmptyItems             = errors.New("invalid_items")
	ErrInvalidItemDescription = errors.New("invalid_item_description")
	ErrInvalidItemAmount      = errors.New("invalid_item_amount")
	ErrCustomerNotFound       = errors.New("customer_not_found")
	ErrNotFound               = errors.New("not_found")
	ErrForbidden              = errors.New("forbidden")
)
