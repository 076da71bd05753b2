package domain

import (
	"context"
	"errors"

	"github.com/justinhw1987/invoiceflow/internal/delivery"
	invoicedomain "github.com/justinhw1987/invoiceflow/internal/invoice/domain"
)

type CreateTemplateRequest struct {
	CustomerID string
	Name       string
	Frequency  string
	StartDate  string
	EndDate    *string
	IsActive   *bool
	Items      []invoicedomain.ItemInput
}

// UpdateTemplateRequest replaces the header and the whole item set. A nil
// IsActive keeps the current flag.
type UpdateTemplateRequest struct {
	ID         string
	CustomerID string
	Name       string
	Frequency  string
	StartDate  string
	EndDate    *string
	IsActive   *bool
	Items      []invoicedomain.ItemInput
}

type GenerateResult struct {
	Invoice  *invoicedomain.Invoice
	Template *Template
	Warnings []delivery.Warning
}

type Service interface {
	Create(ctx context.Context, req CreateTemplateRequest) (*Template, error)
	List(ctx context.Context) ([]Template, error)
	GetByID(ctx context.Context, id string) (*Template, error)
	Update(ctx context.Context, req UpdateTemplateRequest) (*Template, error)
	Delete(ctx context.Context, id string) error

	// Generate materializes an invoice dated today from the template and
	// advances the schedule. Delivery runs after commit and only reports.
	Generate(ctx context.Context, id string) (*GenerateResult, error)

	// GenerateDue is Generate for the invoker. It fails with
	// ErrAlreadyGenerated when the template's next invoice date is no longer
	// dueDate, which means another caller produced this cycle first.
	GenerateDue(ctx context.Context, id, dueDate string) (*GenerateResult, error)

	// ListDue returns active templates of every user that are due on today.
	ListDue(ctx context.Context, today string, limit int) ([]Template, error)
}

var (
	ErrInvalidUser      = errors.New("invalid_user")
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidCustomer  = errors.New("invalid_customer")
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidStartDate = errors.New("invalid_start_date")
	ErrInvalidEndDate   = errors.New("invalid_end_date")
	ErrCustomerNotFound = errors.New("customer_not_found")
	ErrNotFound         = errors.New("not_found")
	ErrTemplateInactive = errors.New("template_inactive")
	ErrAlreadyGenerated = errors.New("already_generated")
)
