// Package domain contains recurring invoice templates and their schedule.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/justinhw1987/invoiceflow/internal/invoice/domain"
	"github.com/shopspring/decimal"
)

// Template is a reusable invoice definition. NextInvoiceDate is the only
// field that advances the schedule.
type Template struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	UserID          snowflake.ID `gorm:"column:user_id;not null;index"`
	CustomerID      snowflake.ID `gorm:"column:customer_id;not null;index"`
	Name            string       `gorm:"column:name;type:text;not null"`
	Frequency       Frequency    `gorm:"column:frequency;type:text;not null"`
	StartDate       string       `gorm:"column:start_date;type:text;not null"`
	EndDate         *string      `gorm:"column:end_date;type:text"`
	NextInvoiceDate string       `gorm:"column:next_invoice_date;type:text;not null;index"`
	LastInvoiceDate *string      `gorm:"column:last_invoice_date;type:text"`
	IsActive        bool         `gorm:"column:is_active;not null;default:true"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`

	Items    []Item                         `gorm:"-"`
	Amount   decimal.Decimal                `gorm:"-"`
	Customer *invoicedomain.CustomerSummary `gorm:"-"`
}

// TableName sets the database table name.
func (Template) TableName() string { return "recurring_invoices" }

// Item is one line of a template.
type Item struct {
	ID                 snowflake.ID    `gorm:"primaryKey"`
	RecurringInvoiceID snowflake.ID    `gorm:"column:recurring_invoice_id;not null;index"`
	Position           int             `gorm:"column:position;not null;default:0"`
	Description        string          `gorm:"column:description;type:text;not null"`
	Amount             decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	CreatedAt          time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Item) TableName() string { return "recurring_invoice_items" }

// Snapshot copies the template lines into invoice inputs. The copy shares
// nothing with the template, so later edits never reach generated invoices.
func (t *Template) Snapshot() []invoicedomain.ItemInput {
	out := make([]invoicedomain.ItemInput, 0, len(t.Items))
	for _, item := range t.Items {
		out = append(out, invoicedomain.ItemInput{
			Description: item.Description,
			Amount:      item.Amount,
		})
	}
	return out
}

// Recompute derives Amount from the items.
func (t *Template) Recompute() {
	total := decimal.Zero
	for _, item := range t.Items {
		total = total.Add(item.Amount)
	}
	t.Amount = total.Round(2)
}
