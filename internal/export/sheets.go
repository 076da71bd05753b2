package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/justinhw1987/invoiceflow/internal/config"
	"github.com/justinhw1987/invoiceflow/internal/delivery"
	invoicedomain "github.com/justinhw1987/invoiceflow/internal/invoice/domain"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const collaboratorSheets = "sheets"

var ErrSheetsNotConfigured = errors.New("sheets_not_configured")

type SyncResult struct {
	SpreadsheetID  string
	SpreadsheetURL string
	SheetName      string
	Rows           int
}

type serviceFactory func(ctx context.Context, cfg config.SheetsConfig) (*sheets.Service, error)

// SheetsWriter mirrors the export rows into a Google spreadsheet.
type SheetsWriter struct {
	integrations *config.IntegrationsHolder
	timeout      time.Duration
	log          *zap.Logger
	newService   serviceFactory
}

func NewSheetsWriter(cfg config.Config, integrations *config.IntegrationsHolder, log *zap.Logger) *SheetsWriter {
	timeout := cfg.CollaboratorTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SheetsWriter{
		integrations: integrations,
		timeout:      timeout,
		log:          log.Named("export.sheets"),
		newService:   serviceAccount,
	}
}

func (w *SheetsWriter) Enabled() bool {
	return w.integrations.Get().Sheets.Enabled()
}

// Sync clears the configured sheet and rewrites header and rows.
func (w *SheetsWriter) Sync(ctx context.Context, invoices []invoicedomain.Invoice) (SyncResult, error) {
	cfg := w.integrations.Get().Sheets
	if !cfg.Enabled() {
		return SyncResult{}, ErrSheetsNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	svc, err := w.newService(ctx, cfg)
	if err != nil {
		return SyncResult{}, &delivery.UpstreamError{Collaborator: collaboratorSheets, Err: err}
	}

	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = SheetName
	}
	target := fmt.Sprintf("'%s'!A:H", strings.ReplaceAll(sheetName, "'", "''"))

	if _, err := svc.Spreadsheets.Values.Clear(cfg.SpreadsheetID, target, &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		w.log.Warn("sheet clear failed", zap.String("spreadsheet_id", cfg.SpreadsheetID), zap.Error(err))
		return SyncResult{}, &delivery.UpstreamError{Collaborator: collaboratorSheets, Err: err}
	}

	rows := Rows(invoices)
	values := make([][]interface{}, 0, len(rows)+1)
	header := make([]interface{}, 0, len(Header))
	for _, h := range Header {
		header = append(header, h)
	}
	values = append(values, header)
	for _, row := range rows {
		values = append(values, row)
	}

	if _, err := svc.Spreadsheets.Values.Update(cfg.SpreadsheetID, target, &sheets.ValueRange{
		MajorDimension: "ROWS",
		Values:         values,
	}).ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		w.log.Warn("sheet update failed", zap.String("spreadsheet_id", cfg.SpreadsheetID), zap.Error(err))
		return SyncResult{}, &delivery.UpstreamError{Collaborator: collaboratorSheets, Err: err}
	}

	w.log.Info("sheet synced",
		zap.String("spreadsheet_id", cfg.SpreadsheetID),
		zap.String("sheet", sheetName),
		zap.Int("rows", len(rows)),
	)
	return SyncResult{
		SpreadsheetID:  cfg.SpreadsheetID,
		SpreadsheetURL: "https://docs.google.com/spreadsheets/d/" + cfg.SpreadsheetID,
		SheetName:      sheetName,
		Rows:           len(rows),
	}, nil
}

func serviceAccount(ctx context.Context, cfg config.SheetsConfig) (*sheets.Service, error) {
	creds := []byte(strings.TrimSpace(cfg.CredentialsJSON))
	if len(creds) == 0 {
		raw, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read sheets credentials: %w", err)
		}
		creds = raw
	}

	jwt, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse sheets credentials: %w", err)
	}
	return sheets.NewService(ctx, option.WithHTTPClient(jwt.Client(ctx)))
}
