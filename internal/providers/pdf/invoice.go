package pdf

import (
	"context"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// InvoiceDocument holds preformatted values; the renderer does no math.
type InvoiceDocument struct {
	CompanyName   string
	CompanyEmail  string
	InvoiceNumber string
	IssueDate     string
	Status        string

	BillToName    string
	BillToEmail   string
	BillToPhone   string
	BillToAddress string

	Items []DocumentItem
	Total string

	PaymentLinkURL string
}

type DocumentItem struct {
	Description string
	Amount      string
}

type MarotoRenderer struct{}

func New() Renderer {
	return &MarotoRenderer{}
}

func (r *MarotoRenderer) RenderInvoice(ctx context.Context, doc InvoiceDocument) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(8, doc.CompanyName, props.Text{
			Size:  16,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, "Invoice "+doc.InvoiceNumber, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	m.AddRow(14,
		col.New(6).Add(
			text.New(doc.CompanyEmail, props.Text{Size: 9}),
		),
		col.New(6).Add(
			text.New("Date of issue: "+doc.IssueDate, props.Text{Size: 9, Align: align.Right}),
			text.New("Status: "+doc.Status, props.Text{Size: 9, Top: 4, Align: align.Right}),
		),
	)

	billTo := []string{doc.BillToName, doc.BillToEmail, doc.BillToPhone}
	billTo = append(billTo, strings.Split(doc.BillToAddress, "\n")...)
	billCol := col.New(12).Add(text.New("Bill to", props.Text{Style: fontstyle.Bold, Size: 10}))
	top := 5.0
	for _, entry := range billTo {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		billCol.Add(text.New(entry, props.Text{Size: 9, Top: top}))
		top += 4
	}
	m.AddRow(top+6, billCol)

	m.AddRow(8,
		text.NewCol(9, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(2, line.NewCol(12))

	for _, item := range doc.Items {
		m.AddRow(8,
			text.NewCol(9, item.Description, props.Text{Size: 9}),
			text.NewCol(3, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(2, line.NewCol(12))
	m.AddRow(10,
		col.New(6),
		text.NewCol(3, "Total", props.Text{Style: fontstyle.Bold, Size: 10}),
		text.NewCol(3, doc.Total, props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right}),
	)

	if doc.PaymentLinkURL != "" {
		m.AddRow(10,
			text.NewCol(12, "Pay online: "+doc.PaymentLinkURL, props.Text{
				Size:      9,
				Top:       3,
				Hyperlink: &doc.PaymentLinkURL,
			}),
		)
	}

	out, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return out.GetBytes(), nil
}
