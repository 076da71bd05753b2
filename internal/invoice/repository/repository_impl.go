package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/justinhw1987/invoiceflow/internal/invoice/domain"
	"github.com/justinhw1987/invoiceflow/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// invoiceRow is an invoice header joined with its customer.
type invoiceRow struct {
	domain.Invoice  `gorm:"embedded"`
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	CustomerAddress string
}

func (r invoiceRow) toInvoice() *domain.Invoice {
	inv := r.Invoice
	inv.Customer = &domain.CustomerSummary{
		ID:      inv.CustomerID,
		Name:    r.CustomerName,
		Email:   r.CustomerEmail,
		Phone:   r.CustomerPhone,
		Address: r.CustomerAddress,
	}
	return &inv
}

const selectInvoice = `SELECT i.id, i.user_id, i.customer_id, i.recurring_invoice_id, i.invoice_number,
	i.date, i.service, i.amount, i.is_paid, i.stripe_payment_link_id, i.payment_link_url,
	i.created_at, i.updated_at,
	c.name AS customer_name, c.email AS customer_email, c.phone AS customer_phone, c.address AS customer_address
	FROM invoices i
	JOIN customers c ON c.id = i.customer_id`

func (r *repo) InsertInvoice(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoices (id, user_id, customer_id, recurring_invoice_id, invoice_number, date,
			is_paid, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.UserID,
		invoice.CustomerID,
		invoice.RecurringInvoiceID,
		invoice.InvoiceNumber,
		invoice.Date,
		invoice.IsPaid,
		invoice.CreatedAt,
		invoice.UpdatedAt,
	).Error
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []domain.Item) error {
	for _, item := range items {
		if err := db.WithContext(ctx).Exec(
			`INSERT INTO invoice_items (id, invoice_id, position, description, amount, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			item.ID,
			item.InvoiceID,
			item.Position,
			item.Description,
			item.Amount,
			item.CreatedAt,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) DeleteItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM invoice_items WHERE invoice_id = ?`, invoiceID).Error
}

// UpdateHeader rewrites the editable header columns and the payment link
// pair, and clears the legacy service/amount pair, which items now supersede.
func (r *repo) UpdateHeader(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET customer_id = ?, date = ?, is_paid = ?, stripe_payment_link_id = ?, payment_link_url = ?,
			service = NULL, amount = NULL, updated_at = ?
		 WHERE id = ?`,
		invoice.CustomerID,
		invoice.Date,
		invoice.IsPaid,
		invoice.StripePaymentLinkID,
		invoice.PaymentLinkURL,
		invoice.UpdatedAt,
		invoice.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID, forUpdate bool) (*domain.Invoice, error) {
	query := selectInvoice + ` WHERE i.id = ?`
	if forUpdate {
		query += db.ForUpdate(conn)
	}

	var row invoiceRow
	if err := conn.WithContext(ctx).Raw(query, id).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return row.toInvoice(), nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, userID snowflake.ID, order domain.ListOrder) ([]*domain.Invoice, error) {
	orderBy := ` ORDER BY i.created_at DESC, i.id DESC`
	if order == domain.OrderByNumber {
		orderBy = ` ORDER BY i.invoice_number ASC`
	}

	var rows []invoiceRow
	if err := db.WithContext(ctx).Raw(selectInvoice+` WHERE i.user_id = ?`+orderBy, userID).Scan(&rows).Error; err != nil {
		return nil, err
	}

	invoices := make([]*domain.Invoice, 0, len(rows))
	for _, row := range rows {
		invoices = append(invoices, row.toInvoice())
	}
	return invoices, nil
}

// ListItems loads the items of every given invoice in one query.
func (r *repo) ListItems(ctx context.Context, db *gorm.DB, invoiceIDs []snowflake.ID) (map[snowflake.ID][]domain.Item, error) {
	out := make(map[snowflake.ID][]domain.Item, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return out, nil
	}

	var items []domain.Item
	if err := db.WithContext(ctx).Raw(
		`SELECT id, invoice_id, position, description, amount, created_at
		 FROM invoice_items WHERE invoice_id IN ?
		 ORDER BY invoice_id, position, id`,
		invoiceIDs,
	).Scan(&items).Error; err != nil {
		return nil, err
	}

	for _, item := range items {
		out[item.InvoiceID] = append(out[item.InvoiceID], item)
	}
	return out, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	if err := r.DeleteItems(ctx, db, id); err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(`DELETE FROM invoices WHERE id = ?`, id).Error
}

func (r *repo) SetPaid(ctx context.Context, db *gorm.DB, userID, id snowflake.ID, isPaid bool, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invoices SET is_paid = ?, updated_at = ? WHERE user_id = ? AND id = ?`,
		isPaid,
		at,
		userID,
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Settle flips an unpaid invoice to paid and returns the affected row count.
// Zero means the invoice is either already paid or missing.
func (r *repo) Settle(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE invoices SET is_paid = ?, updated_at = ? WHERE id = ? AND is_paid = ?`,
		true,
		at,
		id,
		false,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) Exists(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).Raw(`SELECT COUNT(1) FROM invoices WHERE id = ?`, id).Scan(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) SetPaymentLink(ctx context.Context, db *gorm.DB, id snowflake.ID, linkID, url string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invoices SET stripe_payment_link_id = ?, payment_link_url = ?, updated_at = ? WHERE id = ?`,
		linkID,
		url,
		at,
		id,
	).Error
}
