package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	authdomain "github.com/justinhw1987/invoiceflow/internal/auth/domain"
	"github.com/justinhw1987/invoiceflow/internal/config"
	invoicedomain "github.com/justinhw1987/invoiceflow/internal/invoice/domain"
	"github.com/justinhw1987/invoiceflow/internal/invoice/format"
	obsmetrics "github.com/justinhw1987/invoiceflow/internal/observability/metrics"
	paymentdomain "github.com/justinhw1987/invoiceflow/internal/payment/domain"
	"github.com/justinhw1987/invoiceflow/internal/providers/email"
	"github.com/justinhw1987/invoiceflow/internal/providers/pdf"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	outcomeOK      = "ok"
	outcomeFailed  = "failed"
	outcomeSkipped = "skipped"
)

// UserLookup resolves the invoice owner for the company header.
type UserLookup interface {
	GetUser(ctx context.Context, id snowflake.ID) (*authdomain.User, error)
}

// LinkAttacher persists a created payment link on the invoice row.
type LinkAttacher interface {
	AttachPaymentLink(ctx context.Context, id snowflake.ID, linkID, url string) error
}

type Params struct {
	fx.In

	Config   config.Config
	Log      *zap.Logger
	Users    UserLookup
	Invoices LinkAttacher
	Links    paymentdomain.LinkCreator
	PDF      pdf.Renderer
	Email    email.Provider
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log      *zap.Logger
	timeout  time.Duration
	currency string
	users    UserLookup
	invoices LinkAttacher
	links    paymentdomain.LinkCreator
	pdf      pdf.Renderer
	email    email.Provider
	metrics  *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	timeout := p.Config.CollaboratorTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Service{
		log:      p.Log.Named("delivery.service"),
		timeout:  timeout,
		currency: p.Config.Currency,
		users:    p.Users,
		invoices: p.Invoices,
		links:    p.Links,
		pdf:      p.PDF,
		email:    p.Email,
		metrics:  p.Metrics,
	}
}

// DeliverInvoice never fails: every collaborator error becomes a warning.
// inv is updated in place when a payment link gets attached.
func (s *Service) DeliverInvoice(ctx context.Context, inv *invoicedomain.Invoice, opts Options) Result {
	var result Result
	if inv == nil {
		return result
	}

	if err := s.ensurePaymentLink(ctx, inv); err != nil {
		s.warn(ctx, &result, CollaboratorPaymentLink, WarningPaymentLinkFailed, inv, err)
	}

	if opts.SkipEmail {
		return result
	}

	recipient := customerEmail(inv)
	if recipient == "" {
		s.metrics.RecordDelivery(ctx, CollaboratorEmail, outcomeSkipped)
		result.add(WarningEmailSkippedNoRecipient, "customer has no email address")
		return result
	}

	doc, err := s.document(ctx, inv)
	if err != nil {
		s.warn(ctx, &result, CollaboratorPDF, WarningPDFRenderFailed, inv, err)
		return result
	}
	attachment, err := s.render(ctx, doc)
	if err != nil {
		s.warn(ctx, &result, CollaboratorPDF, WarningPDFRenderFailed, inv, err)
		return result
	}
	s.metrics.RecordDelivery(ctx, CollaboratorPDF, outcomeOK)

	if err := s.send(ctx, inv, doc, attachment, recipient); err != nil {
		s.warn(ctx, &result, CollaboratorEmail, WarningEmailDeliveryFailed, inv, err)
		return result
	}
	s.metrics.RecordDelivery(ctx, CollaboratorEmail, outcomeOK)
	return result
}

// SendInvoiceEmail is the explicit resend path.
func (s *Service) SendInvoiceEmail(ctx context.Context, inv *invoicedomain.Invoice) error {
	recipient := customerEmail(inv)
	if recipient == "" {
		return &UpstreamError{Collaborator: CollaboratorEmail, Err: errors.New("customer has no email address")}
	}

	if err := s.ensurePaymentLink(ctx, inv); err != nil {
		s.log.Warn("payment link unavailable for email", zap.String("invoice_id", inv.ID.String()), zap.Error(err))
	}

	doc, err := s.document(ctx, inv)
	if err != nil {
		return &UpstreamError{Collaborator: CollaboratorPDF, Err: err}
	}
	attachment, err := s.render(ctx, doc)
	if err != nil {
		s.metrics.RecordDelivery(ctx, CollaboratorPDF, outcomeFailed)
		return &UpstreamError{Collaborator: CollaboratorPDF, Err: err}
	}
	if err := s.send(ctx, inv, doc, attachment, recipient); err != nil {
		s.metrics.RecordDelivery(ctx, CollaboratorEmail, outcomeFailed)
		return &UpstreamError{Collaborator: CollaboratorEmail, Err: err}
	}
	s.metrics.RecordDelivery(ctx, CollaboratorEmail, outcomeOK)
	return nil
}

// RenderInvoicePDF returns the document and its download file name.
func (s *Service) RenderInvoicePDF(ctx context.Context, inv *invoicedomain.Invoice) ([]byte, string, error) {
	doc, err := s.document(ctx, inv)
	if err != nil {
		return nil, "", &UpstreamError{Collaborator: CollaboratorPDF, Err: err}
	}
	out, err := s.render(ctx, doc)
	if err != nil {
		s.metrics.RecordDelivery(ctx, CollaboratorPDF, outcomeFailed)
		return nil, "", &UpstreamError{Collaborator: CollaboratorPDF, Err: err}
	}
	s.metrics.RecordDelivery(ctx, CollaboratorPDF, outcomeOK)
	return out, FileName(inv), nil
}

// FileName is invoice-<number>-<customer slug>.pdf.
func FileName(inv *invoicedomain.Invoice) string {
	name := fmt.Sprintf("invoice-%d", inv.InvoiceNumber)
	if inv.Customer != nil {
		if s := slug.Make(inv.Customer.Name); s != "" {
			name += "-" + s
		}
	}
	return name + ".pdf"
}

func (s *Service) ensurePaymentLink(ctx context.Context, inv *invoicedomain.Invoice) error {
	if s.links == nil || !s.links.Enabled() {
		return nil
	}
	if inv.IsPaid || (inv.PaymentLinkURL != nil && *inv.PaymentLinkURL != "") {
		return nil
	}
	if !inv.Amount.IsPositive() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	link, err := s.links.CreatePaymentLink(ctx, paymentdomain.PaymentLinkRequest{
		InvoiceID:     inv.ID,
		InvoiceNumber: format.DisplayNumber(inv.InvoiceNumber),
		AmountCents:   inv.Amount.Shift(2).Round(0).IntPart(),
		Currency:      s.currency,
	})
	if err != nil {
		return err
	}
	if err := s.invoices.AttachPaymentLink(ctx, inv.ID, link.ID, link.URL); err != nil {
		return err
	}
	inv.StripePaymentLinkID = &link.ID
	inv.PaymentLinkURL = &link.URL
	s.metrics.RecordDelivery(ctx, CollaboratorPaymentLink, outcomeOK)
	return nil
}

func (s *Service) document(ctx context.Context, inv *invoicedomain.Invoice) (pdf.InvoiceDocument, error) {
	if inv == nil {
		return pdf.InvoiceDocument{}, errors.New("invoice is required")
	}

	doc := pdf.InvoiceDocument{
		InvoiceNumber: format.DisplayNumber(inv.InvoiceNumber),
		IssueDate:     inv.Date,
		Status:        "Unpaid",
		Total:         format.Money(inv.Amount, s.currency),
	}
	if inv.IsPaid {
		doc.Status = "Paid"
	}
	if inv.PaymentLinkURL != nil && !inv.IsPaid {
		doc.PaymentLinkURL = *inv.PaymentLinkURL
	}
	if c := inv.Customer; c != nil {
		doc.BillToName = c.Name
		doc.BillToEmail = c.Email
		doc.BillToPhone = c.Phone
		doc.BillToAddress = c.Address
	}
	for _, item := range inv.Items {
		doc.Items = append(doc.Items, pdf.DocumentItem{
			Description: item.Description,
			Amount:      format.Money(item.Amount, s.currency),
		})
	}

	if s.users != nil {
		user, err := s.users.GetUser(ctx, inv.UserID)
		if err != nil {
			return doc, err
		}
		if user != nil {
			doc.CompanyName = strings.TrimSpace(user.CompanyName)
			if doc.CompanyName == "" {
				doc.CompanyName = strings.TrimSpace(user.DisplayName)
			}
			doc.CompanyEmail = user.Email
		}
	}
	return doc, nil
}

func (s *Service) render(ctx context.Context, doc pdf.InvoiceDocument) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.pdf.RenderInvoice(ctx, doc)
}

func (s *Service) send(ctx context.Context, inv *invoicedomain.Invoice, doc pdf.InvoiceDocument, attachment []byte, recipient string) error {
	data := email.InvoiceEmail{
		CompanyName:    doc.CompanyName,
		CustomerName:   doc.BillToName,
		InvoiceNumber:  doc.InvoiceNumber,
		Date:           doc.IssueDate,
		Total:          doc.Total,
		PaymentLinkURL: doc.PaymentLinkURL,
		Paid:           inv.IsPaid,
	}
	for _, item := range doc.Items {
		data.Items = append(data.Items, email.InvoiceEmailItem{Description: item.Description, Amount: item.Amount})
	}
	body, err := email.RenderInvoice(data)
	if err != nil {
		return err
	}

	msg := email.Message{
		To:       []string{recipient},
		Subject:  data.Subject(),
		HTMLBody: body,
	}
	if len(attachment) > 0 {
		msg.Attachments = []email.Attachment{{
			Filename:    FileName(inv),
			ContentType: "application/pdf",
			Data:        attachment,
		}}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.email.Send(ctx, msg)
}

func (s *Service) warn(ctx context.Context, result *Result, collaborator, code string, inv *invoicedomain.Invoice, err error) {
	s.log.Warn("invoice delivery step failed",
		zap.String("collaborator", collaborator),
		zap.String("invoice_id", inv.ID.String()),
		zap.Error(err),
	)
	s.metrics.RecordDelivery(ctx, collaborator, outcomeFailed)
	result.add(code, err.Error())
}

func customerEmail(inv *invoicedomain.Invoice) string {
	if inv == nil || inv.Customer == nil {
		return ""
	}
	return strings.TrimSpace(inv.Customer.Email)
}
