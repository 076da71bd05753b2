package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, template *Template) error
	InsertItems(ctx context.Context, db *gorm.DB, items []Item) error
	DeleteItems(ctx context.Context, db *gorm.DB, templateID snowflake.ID) error
	UpdateHeader(ctx context.Context, db *gorm.DB, template *Template) error
	FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID, forUpdate bool) (*Template, error)
	List(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*Template, error)
	ListItems(ctx context.Context, db *gorm.DB, templateIDs []snowflake.ID) (map[snowflake.ID][]Item, error)
	// Delete removes the template and its items. Invoices generated from it
	// stay and lose their back-reference.
	Delete(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (bool, error)
	Advance(ctx context.Context, db *gorm.DB, id snowflake.ID, next, last string, at time.Time) error
	ListDue(ctx context.Context, db *gorm.DB, today string, limit int) ([]*Template, error)
}
