package server

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	"github.com/justinhw1987/invoiceflow/internal/clock"
	"github.com/justinhw1987/invoiceflow/internal/export"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportInvoices streams every invoice of the caller as an xlsx workbook,
// one row per line item.
func (s *Server) ExportInvoices(c *gin.Context) {
	invoices, err := s.invoiceSvc.ListForExport(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, invoices); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+s.exportFileName(c)+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// exportFileName is invoices-<company>-<today>.xlsx; the company part is
// dropped when the profile has none.
func (s *Server) exportFileName(c *gin.Context) string {
	parts := []string{"invoices"}
	if userID, ok := userIDFromContext(c); ok {
		user, err := s.authsvc.GetUser(c.Request.Context(), userID)
		if err != nil {
			s.log.Warn("export file name: user lookup failed", zap.Error(err))
		} else if company := slug.Make(user.CompanyName); company != "" {
			parts = append(parts, company)
		}
	}
	parts = append(parts, clock.Today(s.clock, s.cfg.Location()))
	return strings.Join(parts, "-") + ".xlsx"
}

func (s *Server) ExportInvoicesToSheets(c *gin.Context) {
	invoices, err := s.invoiceSvc.ListForExport(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.sheets.Sync(c.Request.Context(), invoices)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"spreadsheet_id":  result.SpreadsheetID,
		"spreadsheet_url": result.SpreadsheetURL,
		"sheet_name":      result.SheetName,
		"rows":            result.Rows,
	}})
}
