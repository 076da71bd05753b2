package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/justinhw1987/invoiceflow/internal/customer/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO customers (id, user_id, name, email, phone, address, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		customer.ID,
		customer.UserID,
		customer.Name,
		customer.Email,
		customer.Phone,
		customer.Address,
		customer.CreatedAt,
		customer.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, name, email, phone, address, created_at, updated_at
		 FROM customers WHERE user_id = ? AND id = ?`,
		userID,
		id,
	).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*domain.Customer, error) {
	var customers []*domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, name, email, phone, address, created_at, updated_at
		 FROM customers WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`,
		userID,
	).Scan(&customers).Error
	if err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Exec(
		`UPDATE customers SET name = ?, email = ?, phone = ?, address = ?, updated_at = ?
		 WHERE user_id = ? AND id = ?`,
		customer.Name,
		customer.Email,
		customer.Phone,
		customer.Address,
		customer.UpdatedAt,
		customer.UserID,
		customer.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (bool, error) {
	stmts := []string{
		`DELETE FROM invoice_items WHERE invoice_id IN (
			SELECT id FROM invoices WHERE user_id = ? AND customer_id = ?)`,
		`DELETE FROM invoices WHERE user_id = ? AND customer_id = ?`,
		`DELETE FROM recurring_invoice_items WHERE recurring_invoice_id IN (
			SELECT id FROM recurring_invoices WHERE user_id = ? AND customer_id = ?)`,
		`DELETE FROM recurring_invoices WHERE user_id = ? AND customer_id = ?`,
	}
	for _, stmt := range stmts {
		if err := db.WithContext(ctx).Exec(stmt, userID, id).Error; err != nil {
			return false, err
		}
	}

	res := db.WithContext(ctx).Exec(`DELETE FROM customers WHERE user_id = ? AND id = ?`, userID, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
