// Package sequence assigns per-user invoice numbers.
package sequence

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/justinhw1987/invoiceflow/pkg/db"
	"gorm.io/gorm"
)

// FirstNumber is the number given to a user's first invoice.
const FirstNumber int64 = 1001

// Next returns max(invoice_number)+1 for the user, or FirstNumber. It must run
// inside the transaction that inserts the invoice. The user row is locked so
// concurrent creations for one user queue up; the unique index on
// (user_id, invoice_number) catches whatever the lock cannot.
func Next(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (int64, error) {
	var locked int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT id FROM users WHERE id = ?`+db.ForUpdate(tx),
		userID,
	).Scan(&locked).Error; err != nil {
		return 0, err
	}

	var current int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(invoice_number), ?) FROM invoices WHERE user_id = ?`,
		FirstNumber-1,
		userID,
	).Scan(&current).Error; err != nil {
		return 0, err
	}
	return current + 1, nil
}

// RetryOnConflict reruns fn while it fails on a duplicate invoice number.
// fn must own its transaction so each attempt starts clean.
func RetryOnConflict(ctx context.Context, attempts int, fn func() error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = fn()
		if err == nil || !db.IsDuplicateKeyErr(err) {
			return err
		}
	}
	return err
}
