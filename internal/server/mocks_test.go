package server

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/justinhw1987/invoiceflow/internal/auth/domain"
	customerdomain "github.com/justinhw1987/invoiceflow/internal/customer/domain"
	"github.com/justinhw1987/invoiceflow/internal/delivery"
	"github.com/justinhw1987/invoiceflow/internal/export"
	invoicedomain "github.com/justinhw1987/invoiceflow/internal/invoice/domain"
	paymentdomain "github.com/justinhw1987/invoiceflow/internal/payment/domain"
	recurringdomain "github.com/justinhw1987/invoiceflow/internal/recurring/domain"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

const (
	testUserID       = snowflake.ID(100)
	testSessionToken = "session-token"
)

// -- Auth --

type fakeAuthService struct {
	loginErr  error
	logoutCnt int
	changeErr error
}

func testUser() *authdomain.User {
	return &authdomain.User{
		ID:          testUserID,
		Email:       "owner@example.com",
		DisplayName: "Owner",
		CompanyName: "Owner Studio",
	}
}

func (f *fakeAuthService) CreateUser(ctx context.Context, req authdomain.CreateUserRequest) (*authdomain.User, error) {
	return testUser(), nil
}

func (f *fakeAuthService) Login(ctx context.Context, req authdomain.LoginRequest) (*authdomain.LoginResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &authdomain.LoginResult{
		User:      testUser(),
		RawToken:  testSessionToken,
		ExpiresAt: time.Now().Add(time.Hour),
		SessionID: snowflake.ID(300),
	}, nil
}

func (f *fakeAuthService) Logout(ctx context.Context, rawToken string) error {
	f.logoutCnt++
	return nil
}

func (f *fakeAuthService) Authenticate(ctx context.Context, rawToken string) (*authdomain.Session, error) {
	if rawToken != testSessionToken {
		return nil, authdomain.ErrInvalidSession
	}
	return &authdomain.Session{ID: snowflake.ID(300), UserID: testUserID}, nil
}

func (f *fakeAuthService) GetUser(ctx context.Context, id snowflake.ID) (*authdomain.User, error) {
	if id != testUserID {
		return nil, authdomain.ErrUserNotFound
	}
	return testUser(), nil
}

func (f *fakeAuthService) ChangePassword(ctx context.Context, req authdomain.ChangePasswordRequest) (*authdomain.LoginResult, error) {
	if f.changeErr != nil {
		return nil, f.changeErr
	}
	return &authdomain.LoginResult{
		User:      testUser(),
		RawToken:  "rotated-token",
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (f *fakeAuthService) UpdateProfile(ctx context.Context, req authdomain.UpdateProfileRequest) (*authdomain.User, error) {
	user := testUser()
	user.DisplayName = req.DisplayName
	user.CompanyName = req.CompanyName
	return user, nil
}

// -- Customers --

type fakeCustomerService struct {
	deleteErr error
}

func (f *fakeCustomerService) Create(ctx context.Context, req customerdomain.CreateCustomerRequest) (customerdomain.Customer, error) {
	if req.Name == "" {
		return customerdomain.Customer{}, customerdomain.ErrInvalidName
	}
	return customerdomain.Customer{ID: snowflake.ID(7), UserID: testUserID, Name: req.Name, Email: req.Email}, nil
}

func (f *fakeCustomerService) List(ctx context.Context) ([]customerdomain.Customer, error) {
	return []customerdomain.Customer{{ID: snowflake.ID(7), Name: "Acme"}}, nil
}

func (f *fakeCustomerService) GetByID(ctx context.Context, req customerdomain.GetCustomerRequest) (customerdomain.Customer, error) {
	return customerdomain.Customer{}, customerdomain.ErrNotFound
}

func (f *fakeCustomerService) Update(ctx context.Context, req customerdomain.UpdateCustomerRequest) (customerdomain.Customer, error) {
	return customerdomain.Customer{}, customerdomain.ErrNotFound
}

func (f *fakeCustomerService) Delete(ctx context.Context, id string) error {
	return f.deleteErr
}

// -- Invoices --

type invoiceMock struct {
	mock.Mock
}

func (m *invoiceMock) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (*invoicedomain.Invoice, error) {
	args := m.Called(ctx, req)
	inv, _ := args.Get(0).(*invoicedomain.Invoice)
	return inv, args.Error(1)
}

func (m *invoiceMock) Update(ctx context.Context, req invoicedomain.UpdateInvoiceRequest) (*invoicedomain.Invoice, error) {
	args := m.Called(ctx, req)
	inv, _ := args.Get(0).(*invoicedomain.Invoice)
	return inv, args.Error(1)
}

func (m *invoiceMock) GetByID(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	args := m.Called(ctx, id)
	inv, _ := args.Get(0).(*invoicedomain.Invoice)
	return inv, args.Error(1)
}

func (m *invoiceMock) List(ctx context.Context) ([]invoicedomain.Invoice, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]invoicedomain.Invoice)
	return out, args.Error(1)
}

func (m *invoiceMock) ListForExport(ctx context.Context) ([]invoicedomain.Invoice, error) {
	args := m.Called(ctx)
	out, _ := args.Get(0).([]invoicedomain.Invoice)
	return out, args.Error(1)
}

func (m *invoiceMock) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *invoiceMock) MarkPaid(ctx context.Context, id string, isPaid bool) (*invoicedomain.Invoice, error) {
	args := m.Called(ctx, id, isPaid)
	inv, _ := args.Get(0).(*invoicedomain.Invoice)
	return inv, args.Error(1)
}

func (m *invoiceMock) SettlePayment(ctx context.Context, id snowflake.ID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *invoiceMock) AttachPaymentLink(ctx context.Context, id snowflake.ID, linkID, url string) error {
	return m.Called(ctx, id, linkID, url).Error(0)
}

func (m *invoiceMock) Materialize(ctx context.Context, tx *gorm.DB, req invoicedomain.MaterializeRequest) (*invoicedomain.Invoice, error) {
	args := m.Called(ctx, tx, req)
	inv, _ := args.Get(0).(*invoicedomain.Invoice)
	return inv, args.Error(1)
}

type deliveryMock struct {
	mock.Mock
}

func (m *deliveryMock) DeliverInvoice(ctx context.Context, inv *invoicedomain.Invoice, opts delivery.Options) delivery.Result {
	return m.Called(ctx, inv, opts).Get(0).(delivery.Result)
}

func (m *deliveryMock) SendInvoiceEmail(ctx context.Context, inv *invoicedomain.Invoice) error {
	return m.Called(ctx, inv).Error(0)
}

func (m *deliveryMock) RenderInvoicePDF(ctx context.Context, inv *invoicedomain.Invoice) ([]byte, string, error) {
	args := m.Called(ctx, inv)
	body, _ := args.Get(0).([]byte)
	return body, args.String(1), args.Error(2)
}

type fakeSheets struct {
	err error
}

func (f *fakeSheets) Sync(ctx context.Context, invoices []invoicedomain.Invoice) (export.SyncResult, error) {
	if f.err != nil {
		return export.SyncResult{}, f.err
	}
	return export.SyncResult{SpreadsheetID: "sheet-1", SheetName: "Invoices", Rows: len(invoices)}, nil
}

// -- Recurring --

type fakeRecurringService struct {
	generateErr error
	generated   *recurringdomain.GenerateResult
}

func (f *fakeRecurringService) Create(ctx context.Context, req recurringdomain.CreateTemplateRequest) (*recurringdomain.Template, error) {
	return &recurringdomain.Template{ID: snowflake.ID(9), Name: req.Name, Frequency: recurringdomain.Frequency(req.Frequency)}, nil
}

func (f *fakeRecurringService) List(ctx context.Context) ([]recurringdomain.Template, error) {
	return nil, nil
}

func (f *fakeRecurringService) GetByID(ctx context.Context, id string) (*recurringdomain.Template, error) {
	return nil, recurringdomain.ErrNotFound
}

func (f *fakeRecurringService) Update(ctx context.Context, req recurringdomain.UpdateTemplateRequest) (*recurringdomain.Template, error) {
	return nil, recurringdomain.ErrNotFound
}

func (f *fakeRecurringService) Delete(ctx context.Context, id string) error {
	return nil
}

func (f *fakeRecurringService) Generate(ctx context.Context, id string) (*recurringdomain.GenerateResult, error) {
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return f.generated, nil
}

func (f *fakeRecurringService) GenerateDue(ctx context.Context, id, dueDate string) (*recurringdomain.GenerateResult, error) {
	return f.Generate(ctx, id)
}

func (f *fakeRecurringService) ListDue(ctx context.Context, today string, limit int) ([]recurringdomain.Template, error) {
	return nil, nil
}

// -- Payments --

type fakeReconciler struct {
	payload   []byte
	signature string
	outcome   paymentdomain.Outcome
	err       error
}

func (f *fakeReconciler) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (paymentdomain.Outcome, error) {
	f.payload = payload
	f.signature = signatureHeader
	return f.outcome, f.err
}
