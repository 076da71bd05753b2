package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListOrder int

const (
	OrderNewestFirst ListOrder = iota
	OrderByNumber
)

type Repository interface {
	InsertInvoice(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	InsertItems(ctx context.Context, db *gorm.DB, items []Item) error
	DeleteItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) error
	UpdateHeader(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	// FindByID loads an invoice regardless of owner so callers can tell
	// missing from foreign.
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, userID snowflake.ID, order ListOrder) ([]*Invoice, error)
	ListItems(ctx context.Context, db *gorm.DB, invoiceIDs []snowflake.ID) (map[snowflake.ID][]Item, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	SetPaid(ctx context.Context, db *gorm.DB, userID, id snowflake.ID, isPaid bool, at time.Time) (bool, error)
	Settle(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (int64, error)
	Exists(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	SetPaymentLink(ctx context.Context, db *gorm.DB, id snowflake.ID, linkID, url string, at time.Time) error
}
