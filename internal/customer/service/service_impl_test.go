package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/justinhw1987/invoiceflow/internal/auth/domain"
	"github.com/justinhw1987/invoiceflow/internal/clock"
	"github.com/justinhw1987/invoiceflow/internal/customer/domain"
	"github.com/justinhw1987/invoiceflow/internal/customer/repository"
	"github.com/justinhw1987/invoiceflow/internal/customer/service"
	"github.com/justinhw1987/invoiceflow/internal/migration"
	"github.com/justinhw1987/invoiceflow/internal/usercontext"
	"github.com/justinhw1987/invoiceflow/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (domain.Service, *gorm.DB, *snowflake.Node, *clock.FakeClock) {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC))

	svc := service.New(service.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
	})
	return svc, conn, node, clk
}

func userContext(t *testing.T, conn *gorm.DB, node *snowflake.Node) (context.Context, snowflake.ID) {
	t.Helper()
	id := node.Generate()
	require.NoError(t, conn.Create(&authdomain.User{
		ID:           id,
		Email:        id.String() + "@example.com",
		PasswordHash: "x",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}).Error)
	return usercontext.WithUserID(context.Background(), id), id
}

func TestCreateAndList(t *testing.T) {
	svc, conn, node, clk := setup(t)
	ctx, userID := userContext(t, conn, node)

	first, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: "  Acme  ", Email: "ap@acme.test"})
	require.NoError(t, err)
	assert.Equal(t, "Acme", first.Name)
	assert.Equal(t, userID, first.UserID)

	clk.Advance(time.Minute)
	_, err = svc.Create(ctx, domain.CreateCustomerRequest{Name: "Globex"})
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Globex", list[0].Name, "newest first")
	assert.Equal(t, "Acme", list[1].Name)
}

func TestCreateValidation(t *testing.T) {
	svc, conn, node, _ := setup(t)
	ctx, _ := userContext(t, conn, node)

	_, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreateCustomerRequest{Name: "Acme", Email: "not-an-address"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = svc.Create(context.Background(), domain.CreateCustomerRequest{Name: "Acme"})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
}

func TestUpdatePartial(t *testing.T) {
	svc, conn, node, _ := setup(t)
	ctx, _ := userContext(t, conn, node)

	created, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: "Acme", Phone: "555-0100"})
	require.NoError(t, err)

	email := "new@acme.test"
	updated, err := svc.Update(ctx, domain.UpdateCustomerRequest{ID: created.ID.String(), Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "Acme", updated.Name)
	assert.Equal(t, "555-0100", updated.Phone)
	assert.Equal(t, email, updated.Email)

	got, err := svc.GetByID(ctx, domain.GetCustomerRequest{ID: created.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, email, got.Email)
}

func TestOtherUsersCannotSeeCustomers(t *testing.T) {
	svc, conn, node, _ := setup(t)
	owner, _ := userContext(t, conn, node)
	other, _ := userContext(t, conn, node)

	created, err := svc.Create(owner, domain.CreateCustomerRequest{Name: "Acme"})
	require.NoError(t, err)

	_, err = svc.GetByID(other, domain.GetCustomerRequest{ID: created.ID.String()})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	name := "Hijacked"
	_, err = svc.Update(other, domain.UpdateCustomerRequest{ID: created.ID.String(), Name: &name})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, svc.Delete(other, created.ID.String()), domain.ErrNotFound)

	list, err := svc.List(other)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDeleteCascadesToInvoices(t *testing.T) {
	svc, conn, node, _ := setup(t)
	ctx, userID := userContext(t, conn, node)

	customer, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: "Acme"})
	require.NoError(t, err)
	keep, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: "Keep"})
	require.NoError(t, err)

	now := time.Now().UTC()
	invoiceID := node.Generate()
	keptInvoiceID := node.Generate()
	templateID := node.Generate()
	require.NoError(t, conn.Exec(
		`INSERT INTO invoices (id, user_id, customer_id, invoice_number, date, is_paid, created_at, updated_at)
		 VALUES (?, ?, ?, 1001, '2025-01-15', false, ?, ?), (?, ?, ?, 1002, '2025-01-15', false, ?, ?)`,
		invoiceID, userID, customer.ID, now, now,
		keptInvoiceID, userID, keep.ID, now, now,
	).Error)
	require.NoError(t, conn.Exec(
		`INSERT INTO invoice_items (id, invoice_id, position, description, amount, created_at) VALUES (?, ?, 0, 'Design', 500, ?)`,
		node.Generate(), invoiceID, now,
	).Error)
	require.NoError(t, conn.Exec(
		`INSERT INTO recurring_invoices (id, user_id, customer_id, name, frequency, start_date, next_invoice_date, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, 'Monthly', 'monthly', '2025-01-15', '2025-01-15', true, ?, ?)`,
		templateID, userID, customer.ID, now, now,
	).Error)

	require.NoError(t, svc.Delete(ctx, customer.ID.String()))

	count := func(query string, args ...any) int64 {
		var n int64
		require.NoError(t, conn.Raw(query, args...).Scan(&n).Error)
		return n
	}
	assert.Zero(t, count(`SELECT COUNT(1) FROM invoices WHERE customer_id = ?`, customer.ID))
	assert.Zero(t, count(`SELECT COUNT(1) FROM invoice_items WHERE invoice_id = ?`, invoiceID))
	assert.Zero(t, count(`SELECT COUNT(1) FROM recurring_invoices WHERE customer_id = ?`, customer.ID))
	assert.Equal(t, int64(1), count(`SELECT COUNT(1) FROM invoices WHERE id = ?`, keptInvoiceID))

	assert.ErrorIs(t, svc.Delete(ctx, customer.ID.String()), domain.ErrNotFound)
}
