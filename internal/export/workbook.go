package export

import (
	"fmt"
	"io"

	invoicedomain "github.com/justinhw1987/invoiceflow/internal/invoice/domain"
	"github.com/xuri/excelize/v2"
)

const SheetName = "Invoices"

// WriteWorkbook writes an xlsx file with a bold header row.
func WriteWorkbook(w io.Writer, invoices []invoicedomain.Invoice) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return err
	}

	header := make([]any, 0, len(Header))
	for _, h := range Header {
		header = append(header, h)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return err
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return err
	}

	rows := Rows(invoices)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return err
		}
	}
	if len(rows) > 0 {
		last := fmt.Sprintf("H%d", len(rows)+1)
		if err := f.SetCellStyle(SheetName, "G2", last, money); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(SheetName, "A", "B", 12)
	_ = f.SetColWidth(SheetName, "C", "D", 24)
	_ = f.SetColWidth(SheetName, "F", "F", 36)
	_ = f.SetColWidth(SheetName, "G", "H", 14)

	return f.Write(w)
}
