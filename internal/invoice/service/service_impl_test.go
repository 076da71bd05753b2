package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/justinhw1987/invoiceflow/internal/auth/domain"
	"github.com/justinhw1987/invoiceflow/internal/clock"
	customerdomain "github.com/justinhw1987/invoiceflow/internal/customer/domain"
	customerrepo "github.com/justinhw1987/invoiceflow/internal/customer/repository"
	customerservice "github.com/justinhw1987/invoiceflow/internal/customer/service"
	"github.com/justinhw1987/invoiceflow/internal/invoice/domain"
	"github.com/justinhw1987/invoiceflow/internal/invoice/repository"
	"github.com/justinhw1987/invoiceflow/internal/invoice/service"
	"github.com/justinhw1987/invoiceflow/internal/migration"
	"github.com/justinhw1987/invoiceflow/internal/usercontext"
	"github.com/justinhw1987/invoiceflow/pkg/db"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnv struct {
	db        *gorm.DB
	node      *snowflake.Node
	invoices  domain.Service
	customers customerdomain.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migration.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(7)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	clk := clock.NewFakeClock(time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC))

	custRepo := customerrepo.Provide()
	return &testEnv{
		db:   conn,
		node: node,
		invoices: service.New(service.Params{
			DB:           conn,
			Log:          zap.NewNop(),
			GenID:        node,
			Clock:        clk,
			Repo:         repository.Provide(),
			CustomerRepo: custRepo,
		}),
		customers: customerservice.New(customerservice.Params{
			DB:    conn,
			Log:   zap.NewNop(),
			GenID: node,
			Clock: clk,
			Repo:  custRepo,
		}),
	}
}

func (e *testEnv) newUser(t *testing.T, email string) context.Context {
	t.Helper()
	user := authdomain.User{
		ID:           e.node.Generate(),
		Email:        email,
		PasswordHash: "x",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := e.db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return usercontext.WithUserID(context.Background(), user.ID)
}

func (e *testEnv) newCustomer(t *testing.T, ctx context.Context, name string) customerdomain.Customer {
	t.Helper()
	customer, err := e.customers.Create(ctx, customerdomain.CreateCustomerRequest{Name: name, Email: "billing@" + name + ".test"})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return customer
}

func items(pairs ...string) []domain.ItemInput {
	out := make([]domain.ItemInput, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, domain.ItemInput{
			Description: pairs[i],
			Amount:      decimal.RequireFromString(pairs[i+1]),
		})
	}
	return out
}

func countRows(t *testing.T, conn *gorm.DB, query string, args ...any) int64 {
	t.Helper()
	var count int64
	if err := conn.Raw(query, args...).Scan(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return count
}

func TestInvoiceLifecycleForAcme(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.newUser(t, "owner@example.com")
	acme := env.newCustomer(t, ctx, "Acme")

	created, err := env.invoices.Create(ctx, domain.CreateInvoiceRequest{
		CustomerID: acme.ID.String(),
		Date:       "2025-01-15",
		Items:      items("Design", "500.00", "SEO", "300.00"),
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if created.InvoiceNumber != 1001 {
		t.Fatalf("expected first number 1001, got %d", created.InvoiceNumber)
	}
	if created.Amount.StringFixed(2) != "800.00" {
		t.Fatalf("expected amount 800.00, got %s", created.Amount.StringFixed(2))
	}
	if created.Customer == nil || created.Customer.Name != "Acme" {
		t.Fatalf("expected joined customer, got %+v", created.Customer)
	}
	if len(created.Items) != 2 || created.Items[0].Description != "Design" {
		t.Fatalf("expected items in submitted order, got %+v", created.Items)
	}

	paid, err := env.invoices.MarkPaid(ctx, created.ID.String(), true)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if !paid.IsPaid || len(paid.Items) != 2 {
		t.Fatalf("expected paid invoice with untouched items, got paid=%v items=%d", paid.IsPaid, len(paid.Items))
	}

	if err := env.invoices.Delete(ctx, created.ID.String()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.invoices.GetByID(ctx, created.ID.String()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if n := countRows(t, env.db, `SELECT COUNT(1) FROM invoice_items WHERE invoice_id = ?`, created.ID); n != 0 {
		t.Fatalf("expected items removed, got %d", n)
	}
	if _, err := env.customers.GetByID(ctx, customerdomain.GetCustomerRequest{ID: acme.ID.String()}); err != nil {
		t.Fatalf("expected customer to remain, got %v", err)
	}
}

func TestInvoiceNumbersArePerUser(t *testing.T) {
	env := newTestEnv(t)
	ctxA := env.newUser(t, "a@example.com")
	ctxB := env.newUser(t, "b@example.com")
	custA := env.newCustomer(t, ctxA, "alpha")
	custB := env.newCustomer(t, ctxB, "beta")

	create := func(ctx context.Context, customerID snowflake.ID) int64 {
		inv, err := env.invoices.Create(ctx, domain.CreateInvoiceRequest{
			CustomerID: customerID.String(),
			Date:       "2025-01-15",
			Items:      items("Work", "10.00"),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		return inv.InvoiceNumber
	}

	if n := create(ctxA, custA.ID); n != 1001 {
		t.Fatalf("expected 1001, got %d", n)
	}
	if n := create(ctxA, custA.ID); n != 1002 {
		t.Fatalf("expected 1002, got %d", n)
	}
	if n := create(ctxB, custB.ID); n != 1001 {
		t.Fatalf("expected other user to start at 1001, got %d", n)
	}
}

func TestConcurrentCreatesGetDistinctNumbers(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.newUser(t, "busy@example.com")
	customer := env.newCustomer(t, ctx, "busy")

	const workers = 8
	var wg sync.WaitGroup
	numbers := make(chan int64, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv, err := env.invoices.Create(ctx, domain.CreateInvoiceRequest{
				CustomerID: customer.ID.String(),
				Date:       "2025-01-15",
				Items:      items("Work", "1.00"),
			})
			if err != nil {
				errs <- err
				return
			}
			numbers <- inv.InvoiceNumber
		}()
	}
	wg.Wait()
	close(numbers)
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent create: %v", err)
	}
	seen := map[int64]bool{}
	for n := range numbers {
		if seen[n] {
			t.Fatalf("duplicate invoice number %d", n)
		}
		seen[n] = true
	}
	for n := int64(1001); n < 1001+workers; n++ {
		if !seen[n] {
			t.Fatalf("expected number %d to be assigned", n)
		}
	}
}

func TestAmountDerivesFromItems(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.newUser(t, "sum@example.com")
	customer := env.newCustomer(t, ctx, "sum")

	inv, err := env.invoices.Create(ctx, domain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		Date:       "2025-01-15",
		Items:      items("a", "0.10", "b", "0.20", "c", "0.70", "d", "1999.99"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// A stale legacy amount must not win once items exist.
	if err := env.db.Exec(`UPDATE invoices SET amount = ?, service = ? WHERE id = ?`, "5.00", "stale", inv.ID).Error; err != nil {
		t.Fatalf("poison legacy amount: %v", err)
	}

	got, err := env.invoices.GetByID(ctx, inv.ID.String())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount.StringFixed(2) != "2000.99" {
		t.Fatalf("expected 2000.99, got %s", got.Amount.StringFixed(2))
	}
}

func TestLegacyInvoiceNormalizesToSingleItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.newUser(t, "legacy@example.com")
	customer := env.newCustomer(t, ctx, "legacy")
	userID, _ := usercontext.UserIDFromContext(ctx)

	id := env.node.Generate()
	now := time.Now().UTC()
	if err := env.db.Exec(
		`INSERT INTO invoices (id, user_id, customer_id, invoice_number, date, service, amount, is_paid, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, userID, customer.ID, 1001, "2023-06-01", "Consulting", "250.50", false, now, now,
	).Error; err != nil {
		t.Fatalf("insert legacy invoice: %v", err)
	}

	got, err := env.invoices.GetByID(ctx, id.String())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].Description != "Consulting" {
		t.Fatalf("expected synthesized Consulting item, got %+v", got.Items)
	}
	if got.Amount.StringFixed(2) != "250.50" {
		t.Fatalf("expected 250.50, got %s", got.Amount.StringFixed(2))
	}

	next, err := env.invoices.Create(ctx, domain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		Date:       "2025-01-15",
		Items:      items("New", "1.00"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if next.InvoiceNumber != 1002 {
		t.Fatalf("expected numbering to continue after legacy rows, got %d", next.InvoiceNumber)
	}
}

func TestUpdateReplacesItemsAtomically(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.newUser(t, "edit@example.com")
	first := env.newCustomer(t, ctx, "first")
	second := env.newCustomer(t, ctx, "second")

	inv, err := env.invoices.Create(ctx, domain.CreateInvoiceRequest{
		CustomerID: first.ID.String(),
		Date:       "2025-01-15",
		Items:      items("Design", "500.00", "SEO", "300.00"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	paid := true
	updated, err := env.invoices.Update(ctx, domain.UpdateInvoiceRequest{
		ID:         inv.ID.String(),
		CustomerID: second.ID.String(),
		Date:       "2025-02-01",
		IsPaid:     &paid,
		Items:      items("Retainer", "1200.00"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.CustomerID != second.ID || updated.Date != "2025-02-01" || !updated.IsPaid {
		t.Fatalf("header not updated: %+v", updated)
	}
	if len(updated.Items) != 1 || updated.Amount.StringFixed(2) != "1200.00" {
		t.Fatalf("expected single replaced item totalling 1200.00, got %d items, %s", len(updated.Items), updated.Amount)
	}
	if n := countRows(t, env.db, `SELECT COUNT(1) FROM invoice_items WHERE invoice_id = ?`, inv.ID); n != 1 {
		t.Fatalf("expected 1 stored item, got %d", n)
	}

	// A rejected update leaves the previous version intact.
	_, err = env.invoices.Update(ctx, domain.UpdateInvoiceRequest{
		ID:         inv.ID.String(),
		CustomerID: env.node.Generate().String(),
		Date:       "2025-03-01",
		Items:      items("Ghost", "1.00"),
	})
	if !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
	again, err := env.invoices.GetByID(ctx, inv.ID.String())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if again.Date != "2025-02-01" || len(again.Items) != 1 || again.Items[0].Description != "Retainer" {
		t.Fatalf("expected previous version after failed update, got %+v", again)
	}
}

func TestOwnershipIsolation(t *testing.T) {
	env := newTestEnv(t)
	owner := env.newUser(t, "owner@example.com")
	intruder := env.newUser(t, "intruder@example.com")
	customer := env.newCustomer(t, owner, "private")

	inv, err := env.invoices.Create(owner, domain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		Date:       "2025-01-15",
		Items:      items("Work", "10.00"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := env.invoices.GetByID(intruder, inv.ID.String()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign read, got %v", err)
	}
	list, err := env.invoices.List(intruder)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list for intruder, got %d", len(list))
	}
	intruderCustomer := env.newCustomer(t, intruder, "mine")
	_, err = env.invoices.Update(intruder, domain.UpdateInvoiceRequest{
		ID:         inv.ID.String(),
		CustomerID: intruderCustomer.ID.String(),
		Date:       "2025-01-15",
		Items:      items("Work", "1.00"),
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden on foreign update, got %v", err)
	}
	if err := env.invoices.Delete(intruder, inv.ID.String()); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden on foreign delete, got %v", err)
	}
	if _, err := env.invoices.MarkPaid(intruder, inv.ID.String(), true); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on foreign mark-paid, got %v", err)
	}
	_, err = env.invoices.Create(intruder, domain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		Date:       "2025-01-15",
		Items:      items("Work", "1.00"),
	})
	if !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound for foreign customer, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.newUser(t, "v@example.com")
	customer := env.newCustomer(t, ctx, "v")

	cases := []struct {
		name string
		req  domain.CreateInvoiceRequest
		want error
	}{
		{"no items", domain.CreateInvoiceRequest{CustomerID: customer.ID.String(), Date: "2025-01-15"}, domain.ErrEmptyItems},
		{"blank description", domain.CreateInvoiceRequest{CustomerID: customer.ID.String(), Date: "2025-01-15", Items: items("  ", "1.00")}, domain.ErrInvalidItemDescription},
		{"zero amount", domain.CreateInvoiceRequest{CustomerID: customer.ID.String(), Date: "2025-01-15", Items: items("x", "0")}, domain.ErrInvalidItemAmount},
		{"three decimals", domain.CreateInvoiceRequest{CustomerID: customer.ID.String(), Date: "2025-01-15", Items: items("x", "1.005")}, domain.ErrInvalidItemAmount},
		{"bad date", domain.CreateInvoiceRequest{CustomerID: customer.ID.String(), Date: "15/01/2025", Items: items("x", "1.00")}, domain.ErrInvalidDate},
		{"bad customer", domain.CreateInvoiceRequest{CustomerID: "abc", Date: "2025-01-15", Items: items("x", "1.00")}, domain.ErrInvalidCustomer},
	}
	for _, tc := range cases {
		if _, err := env.invoices.Create(ctx, tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if n := countRows(t, env.db, `SELECT COUNT(1) FROM invoices`); n != 0 {
		t.Fatalf("expected no invoices after rejected creates, got %d", n)
	}
}

func TestSettlePaymentIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.newUser(t, "pay@example.com")
	customer := env.newCustomer(t, ctx, "pay")

	inv, err := env.invoices.Create(ctx, domain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		Date:       "2025-01-15",
		Items:      items("Work", "10.00"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	changed, err := env.invoices.SettlePayment(context.Background(), inv.ID)
	if err != nil || !changed {
		t.Fatalf("expected first settle to transition, got changed=%v err=%v", changed, err)
	}
	changed, err = env.invoices.SettlePayment(context.Background(), inv.ID)
	if err != nil || changed {
		t.Fatalf("expected second settle to be a no-op, got changed=%v err=%v", changed, err)
	}
	if _, err := env.invoices.SettlePayment(context.Background(), env.node.Generate()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing invoice, got %v", err)
	}
}

func TestListNewestFirstAndExportByNumber(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.newUser(t, "list@example.com")
	customer := env.newCustomer(t, ctx, "list")

	for i := 0; i < 3; i++ {
		if _, err := env.invoices.Create(ctx, domain.CreateInvoiceRequest{
			CustomerID: customer.ID.String(),
			Date:       "2025-01-15",
			Items:      items("Work", "10.00"),
		}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	list, err := env.invoices.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].InvoiceNumber != 1003 || list[2].InvoiceNumber != 1001 {
		t.Fatalf("expected newest first, got %d invoices", len(list))
	}
	for _, inv := range list {
		if len(inv.Items) != 1 || inv.Amount.StringFixed(2) != "10.00" {
			t.Fatalf("expected items loaded for %d", inv.InvoiceNumber)
		}
	}

	exported, err := env.invoices.ListForExport(ctx)
	if err != nil {
		t.Fatalf("list for export: %v", err)
	}
	if exported[0].InvoiceNumber != 1001 || exported[2].InvoiceNumber != 1003 {
		t.Fatalf("expected export ordered by number")
	}
}

func TestAttachPaymentLink(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.newUser(t, "link@example.com")
	customer := env.newCustomer(t, ctx, "link")

	inv, err := env.invoices.Create(ctx, domain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		Date:       "2025-01-15",
		Items:      items("Work", "10.00"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := env.invoices.AttachPaymentLink(ctx, inv.ID, "plink_1", "https://pay.test/1"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	got, err := env.invoices.GetByID(ctx, inv.ID.String())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PaymentLinkURL == nil || *got.PaymentLinkURL != "https://pay.test/1" {
		t.Fatalf("expected payment link url, got %v", got.PaymentLinkURL)
	}
}

func TestUpdateWithNewTotalDropsStalePaymentLink(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.newUser(t, "relink@example.com")
	customer := env.newCustomer(t, ctx, "relink")

	inv, err := env.invoices.Create(ctx, domain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		Date:       "2025-01-15",
		Items:      items("Design", "500.00"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := env.invoices.AttachPaymentLink(ctx, inv.ID, "plink_1", "https://pay.test/1"); err != nil {
		t.Fatalf("attach: %v", err)
	}

	// Same total with reworded items keeps the link.
	same, err := env.invoices.Update(ctx, domain.UpdateInvoiceRequest{
		ID:         inv.ID.String(),
		CustomerID: customer.ID.String(),
		Date:       "2025-01-15",
		Items:      items("Design work", "250.00", "Review", "250.00"),
	})
	if err != nil {
		t.Fatalf("update same total: %v", err)
	}
	if same.PaymentLinkURL == nil || *same.PaymentLinkURL != "https://pay.test/1" {
		t.Fatalf("expected link kept for unchanged total, got %v", same.PaymentLinkURL)
	}

	changed, err := env.invoices.Update(ctx, domain.UpdateInvoiceRequest{
		ID:         inv.ID.String(),
		CustomerID: customer.ID.String(),
		Date:       "2025-01-15",
		Items:      items("Design", "500.00", "Hosting", "300.00"),
	})
	if err != nil {
		t.Fatalf("update new total: %v", err)
	}
	if !changed.Amount.Equal(decimal.RequireFromString("800.00")) {
		t.Fatalf("expected 800.00, got %s", changed.Amount)
	}
	if changed.PaymentLinkURL != nil || changed.StripePaymentLinkID != nil {
		t.Fatalf("expected stale link cleared, got id=%v url=%v", changed.StripePaymentLinkID, changed.PaymentLinkURL)
	}
}

// staleNumberRepo replays the number of an invoice that was committed after
// this transaction read MAX(invoice_number), on the first insert only.
type staleNumberRepo struct {
	domain.Repository
	stale   int64
	inserts int
}

func (r *staleNumberRepo) InsertInvoice(ctx context.Context, tx *gorm.DB, invoice *domain.Invoice) error {
	r.inserts++
	if r.inserts == 1 {
		invoice.InvoiceNumber = r.stale
	}
	return r.Repository.InsertInvoice(ctx, tx, invoice)
}

func TestCreateRetriesAfterNumberConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := env.newUser(t, "race@example.com")
	customer := env.newCustomer(t, ctx, "race")

	for i := 0; i < 2; i++ {
		if _, err := env.invoices.Create(ctx, domain.CreateInvoiceRequest{
			CustomerID: customer.ID.String(),
			Date:       "2025-01-15",
			Items:      items("Work", "1.00"),
		}); err != nil {
			t.Fatalf("seed create: %v", err)
		}
	}

	repo := &staleNumberRepo{Repository: repository.Provide(), stale: 1002}
	racing := service.New(service.Params{
		DB:           env.db,
		Log:          zap.NewNop(),
		GenID:        env.node,
		Clock:        clock.NewFakeClock(time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)),
		Repo:         repo,
		CustomerRepo: customerrepo.Provide(),
	})

	inv, err := racing.Create(ctx, domain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		Date:       "2025-01-15",
		Items:      items("Work", "2.00"),
	})
	if err != nil {
		t.Fatalf("create after conflict: %v", err)
	}
	if repo.inserts != 2 {
		t.Fatalf("expected the conflicting attempt to be retried, got %d inserts", repo.inserts)
	}
	if inv.InvoiceNumber != 1003 {
		t.Fatalf("expected retry to take max+1 = 1003, got %d", inv.InvoiceNumber)
	}
	if n := countRows(t, env.db, `SELECT COUNT(*) FROM invoices WHERE invoice_number = 1002`); n != 1 {
		t.Fatalf("expected number 1002 once, got %d", n)
	}
	if n := countRows(t, env.db, `SELECT COUNT(*) FROM invoice_items WHERE invoice_id = ?`, inv.ID); n != 1 {
		t.Fatalf("expected the failed attempt to leave no items, got %d", n)
	}
}
