package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*Customer, error)
	List(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*Customer, error)
	Update(ctx context.Context, db *gorm.DB, customer *Customer) error
	// Delete removes the customer together with its invoices, recurring
	// templates and their line items. It reports whether a row was removed.
	Delete(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (bool, error)
}
