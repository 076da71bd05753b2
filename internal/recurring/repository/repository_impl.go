package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/justinhw1987/invoiceflow/internal/invoice/domain"
	"github.com/justinhw1987/invoiceflow/internal/recurring/domain"
	"github.com/justinhw1987/invoiceflow/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

type templateRow struct {
	domain.Template `gorm:"embedded"`
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	CustomerAddress string
}

func (r templateRow) toTemplate() *domain.Template {
	t := r.Template
	t.Customer = &invoicedomain.CustomerSummary{
		ID:      t.CustomerID,
		Name:    r.CustomerName,
		Email:   r.CustomerEmail,
		Phone:   r.CustomerPhone,
		Address: r.CustomerAddress,
	}
	return &t
}

const selectTemplate = `SELECT r.id, r.user_id, r.customer_id, r.name, r.frequency, r.start_date, r.end_date,
	r.next_invoice_date, r.last_invoice_date, r.is_active, r.created_at, r.updated_at,
	c.name AS customer_name, c.email AS customer_email, c.phone AS customer_phone, c.address AS customer_address
	FROM recurring_invoices r
	JOIN customers c ON c.id = r.customer_id`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, t *domain.Template) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO recurring_invoices (id, user_id, customer_id, name, frequency, start_date, end_date,
			next_invoice_date, last_invoice_date, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.UserID,
		t.CustomerID,
		t.Name,
		t.Frequency,
		t.StartDate,
		t.EndDate,
		t.NextInvoiceDate,
		t.LastInvoiceDate,
		t.IsActive,
		t.CreatedAt,
		t.UpdatedAt,
	).Error
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []domain.Item) error {
	for _, item := range items {
		if err := db.WithContext(ctx).Exec(
			`INSERT INTO recurring_invoice_items (id, recurring_invoice_id, position, description, amount, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			item.ID,
			item.RecurringInvoiceID,
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

func (r *repo) DeleteItems(ctx context.Context, db *gorm.DB, templateID snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM recurring_invoice_items WHERE recurring_invoice_id = ?`, templateID).Error
}

func (r *repo) UpdateHeader(ctx context.Context, db *gorm.DB, t *domain.Template) error {
	return db.WithContext(ctx).Exec(
		`UPDATE recurring_invoices SET customer_id = ?, name = ?, frequency = ?, start_date = ?, end_date = ?,
			next_invoice_date = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		t.CustomerID,
		t.Name,
		t.Frequency,
		t.StartDate,
		t.EndDate,
		t.NextInvoiceDate,
		t.IsActive,
		t.UpdatedAt,
		t.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, userID, id snowflake.ID, forUpdate bool) (*domain.Template, error) {
	query := selectTemplate + ` WHERE r.user_id = ? AND r.id = ?`
	if forUpdate {
		query += db.ForUpdate(conn)
	}

	var row templateRow
	if err := conn.WithContext(ctx).Raw(query, userID, id).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return row.toTemplate(), nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*domain.Template, error) {
	var rows []templateRow
	if err := db.WithContext(ctx).Raw(
		selectTemplate+` WHERE r.user_id = ? ORDER BY r.created_at DESC, r.id DESC`,
		userID,
	).Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]*domain.Template, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toTemplate())
	}
	return out, nil
}

func (r *repo) ListItems(ctx context.Context, db *gorm.DB, templateIDs []snowflake.ID) (map[snowflake.ID][]domain.Item, error) {
	out := make(map[snowflake.ID][]domain.Item, len(templateIDs))
	if len(templateIDs) == 0 {
		return out, nil
	}

	var items []domain.Item
	if err := db.WithContext(ctx).Raw(
		`SELECT id, recurring_invoice_id, position, description, amount, created_at
		 FROM recurring_invoice_items WHERE recurring_invoice_id IN ?
		 ORDER BY recurring_invoice_id, position, id`,
		templateIDs,
	).Scan(&items).Error; err != nil {
		return nil, err
	}

	for _, item := range items {
		out[item.RecurringInvoiceID] = append(out[item.RecurringInvoiceID], item)
	}
	return out, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (bool, error) {
	if err := db.WithContext(ctx).Exec(
		`UPDATE invoices SET recurring_invoice_id = NULL WHERE user_id = ? AND recurring_invoice_id = ?`,
		userID,
		id,
	).Error; err != nil {
		return false, err
	}
	if err := r.DeleteItems(ctx, db, id); err != nil {
		return false, err
	}

	res := db.WithContext(ctx).Exec(`DELETE FROM recurring_invoices WHERE user_id = ? AND id = ?`, userID, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Advance(ctx context.Context, db *gorm.DB, id snowflake.ID, next, last string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE recurring_invoices SET next_invoice_date = ?, last_invoice_date = ?, updated_at = ? WHERE id = ?`,
		next,
		last,
		at,
		id,
	).Error
}

// ListDue scans across users. Dates are stored as YYYY-MM-DD text, so
// lexical comparison matches calendar order.
func (r *repo) ListDue(ctx context.Context, db *gorm.DB, today string, limit int) ([]*domain.Template, error) {
	if limit <= 0 {
		limit = 500
	}

	var rows []templateRow
	if err := db.WithContext(ctx).Raw(
		selectTemplate+` WHERE r.is_active = ? AND r.next_invoice_date <= ?
			AND (r.end_date IS NULL OR r.next_invoice_date <= r.end_date)
		 ORDER BY r.next_invoice_date ASC, r.id ASC
		 LIMIT ?`,
		true,
		today,
		limit,
	).Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]*domain.Template, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toTemplate())
	}
	return out, nil
}
