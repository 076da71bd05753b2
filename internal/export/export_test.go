package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/justinhw1987/invoiceflow/internal/config"
	"github.com/justinhw1987/invoiceflow/internal/delivery"
	invoicedomain "github.com/justinhw1987/invoiceflow/internal/invoice/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func sampleInvoices() []invoicedomain.Invoice {
	return []invoicedomain.Invoice{
		{
			InvoiceNumber: 1001,
			Date:          "2025-01-15",
			IsPaid:        true,
			Amount:        decimal.RequireFromString("800.00"),
			Customer:      &invoicedomain.CustomerSummary{Name: "Acme", Email: "ap@acme.test"},
			Items: []invoicedomain.Item{
				{Description: "Design", Amount: decimal.RequireFromString("500.00")},
				{Description: "SEO", Amount: decimal.RequireFromString("300.00")},
			},
		},
		{
			InvoiceNumber: 1002,
			Date:          "2025-01-16",
			Amount:        decimal.RequireFromString("25.50"),
			Customer:      &invoicedomain.CustomerSummary{Name: "Globex"},
			Items: []invoicedomain.Item{
				{Description: "Hosting", Amount: decimal.RequireFromString("25.50")},
			},
		},
	}
}

func TestRowsBlankRepeatedInvoiceCells(t *testing.T) {
	rows := Rows(sampleInvoices())
	require.Len(t, rows, 3)

	assert.Equal(t, []any{"INV-1001", "2025-01-15", "Acme", "ap@acme.test", "Paid", "Design", 500.0, 800.0}, rows[0])
	assert.Equal(t, []any{"", "", "", "", "", "SEO", 300.0, ""}, rows[1])
	assert.Equal(t, []any{"INV-1002", "2025-01-16", "Globex", "", "Unpaid", "Hosting", 25.5, 25.5}, rows[2])
}

func TestWriteWorkbook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWorkbook(&buf, sampleInvoices()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "INV-1001", rows[1][0])
	assert.Equal(t, "500", rows[1][6])
	assert.Equal(t, "SEO", rows[2][5])
	assert.Equal(t, "", rows[2][0])
	assert.Equal(t, "Unpaid", rows[3][4])

	styleID, err := f.GetCellStyle(SheetName, "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)
}

func newWriter(t *testing.T, endpoint string, sheetsCfg config.SheetsConfig) *SheetsWriter {
	t.Helper()
	w := NewSheetsWriter(config.Config{}, config.NewStaticIntegrations(config.Integrations{Sheets: sheetsCfg}), zap.NewNop())
	w.newService = func(ctx context.Context, cfg config.SheetsConfig) (*sheets.Service, error) {
		return sheets.NewService(ctx, option.WithEndpoint(endpoint+"/"), option.WithoutAuthentication())
	}
	return w
}

func TestSheetsSync(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []string
		body  sheets.ValueRange
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case strings.HasSuffix(r.URL.Path, ":clear"):
			calls = append(calls, "clear")
			_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1"}`))
		case r.Method == http.MethodPut:
			calls = append(calls, "update")
			assert.Equal(t, "RAW", r.URL.Query().Get("valueInputOption"))
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &body)
			_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-1","updatedRows":4}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	writer := newWriter(t, server.URL, config.SheetsConfig{
		CredentialsJSON: "{}",
		SpreadsheetID:   "sheet-1",
		SheetName:       "Invoices",
	})
	result, err := writer.Sync(context.Background(), sampleInvoices())
	require.NoError(t, err)

	assert.Equal(t, []string{"clear", "update"}, calls)
	assert.Equal(t, 3, result.Rows)
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/sheet-1", result.SpreadsheetURL)
	require.Len(t, body.Values, 4)
	assert.Equal(t, "Invoice #", body.Values[0][0])
	assert.Equal(t, "INV-1002", body.Values[3][0])
}

func TestSheetsSyncWrapsUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"denied"}}`))
	}))
	defer server.Close()

	writer := newWriter(t, server.URL, config.SheetsConfig{CredentialsJSON: "{}", SpreadsheetID: "sheet-1"})
	_, err := writer.Sync(context.Background(), sampleInvoices())

	var upstream *delivery.UpstreamError
	require.True(t, errors.As(err, &upstream), "got %v", err)
	assert.Equal(t, "sheets", upstream.Collaborator)
}

func TestSheetsSyncNotConfigured(t *testing.T) {
	writer := NewSheetsWriter(config.Config{}, config.NewStaticIntegrations(config.Integrations{}), zap.NewNop())
	assert.False(t, writer.Enabled())
	_, err := writer.Sync(context.Background(), nil)
	assert.ErrorIs(t, err, ErrSheetsNotConfigured)
}
