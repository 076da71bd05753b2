// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Invoice is the header row plus its derived aggregate. Items, Amount and
// Customer are assembled by the repository and never stored on the row.
type Invoice struct {
	ID                  snowflake.ID        `gorm:"primaryKey"`
	UserID              snowflake.ID        `gorm:"column:user_id;not null;uniqueIndex:ux_invoices_user_number,priority:1"`
	CustomerID          snowflake.ID        `gorm:"column:customer_id;not null;index"`
	RecurringInvoiceID  *snowflake.ID       `gorm:"column:recurring_invoice_id;index"`
	InvoiceNumber       int64               `gorm:"column:invoice_number;not null;uniqueIndex:ux_invoices_user_number,priority:2"`
	Date                string              `gorm:"column:date;type:text;not null"`
	Service             *string             `gorm:"column:service;type:text"`
	LegacyAmount        decimal.NullDecimal `gorm:"column:amount;type:numeric(12,2)"`
	IsPaid              bool                `gorm:"column:is_paid;not null;default:false"`
	StripePaymentLinkID *string             `gorm:"column:stripe_payment_link_id;type:text"`
	PaymentLinkURL      *string             `gorm:"column:payment_link_url;type:text"`
	CreatedAt           time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP"`

	Items    []Item           `gorm:"-"`
	Amount   decimal.Decimal  `gorm:"-"`
	Customer *CustomerSummary `gorm:"-"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Item is one line on an invoice.
type Item struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	InvoiceID   snowflake.ID    `gorm:"column:invoice_id;not null;index"`
	Position    int             `gorm:"column:position;not null;default:0"`
	Description string          `gorm:"column:description;type:text;not null"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Item) TableName() string { return "invoice_items" }

// CustomerSummary is the customer as joined onto an invoice read.
type CustomerSummary struct {
	ID      snowflake.ID
	Name    string
	Email   string
	Phone   string
	Address string
}

// ItemInput is a line item as submitted by a caller.
type ItemInput struct {
	Description string
	Amount      decimal.Decimal
}

const legacyItemDescription = "Service"

// Normalize folds the legacy single service/amount pair into Items and
// recomputes Amount. Invoices that carry items ignore the legacy columns.
func (inv *Invoice) Normalize() {
	if inv == nil {
		return
	}
	if len(inv.Items) == 0 && inv.LegacyAmount.Valid {
		description := legacyItemDescription
		if inv.Service != nil && *inv.Service != "" {
			description = *inv.Service
		}
		inv.Items = []Item{{
			InvoiceID:   inv.ID,
			Description: description,
			Amount:      inv.LegacyAmount.Decimal,
		}}
	}
	inv.Amount = SumItems(inv.Items)
}

// SumItems adds item amounts in decimal and rounds to cents.
func SumItems(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Amount)
	}
	return total.Round(2)
}
