package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/justinhw1987/invoiceflow/internal/delivery"
	invoicedomain "github.com/justinhw1987/invoiceflow/internal/invoice/domain"
	"github.com/justinhw1987/invoiceflow/internal/invoice/format"
	"github.com/shopspring/decimal"
)

type itemRequest struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

type createInvoiceRequest struct {
	CustomerID string        `json:"customer_id"`
	Date       string        `json:"date"`
	Items      []itemRequest `json:"items"`
}

type updateInvoiceRequest struct {
	CustomerID string        `json:"customer_id"`
	Date       string        `json:"date"`
	IsPaid     *bool         `json:"is_paid"`
	Items      []itemRequest `json:"items"`
}

type markPaidRequest struct {
	IsPaid *bool `json:"is_paid"`
}

type itemResponse struct {
	ID          string `json:"id,omitempty"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

type customerSummaryResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type invoiceResponse struct {
	ID                 string                   `json:"id"`
	InvoiceNumber      int64                    `json:"invoice_number"`
	DisplayNumber      string                   `json:"display_number"`
	CustomerID         string                   `json:"customer_id"`
	Customer           *customerSummaryResponse `json:"customer,omitempty"`
	RecurringInvoiceID *string                  `json:"recurring_invoice_id"`
	Date               string                   `json:"date"`
	Items              []itemResponse           `json:"items"`
	Amount             string                   `json:"amount"`
	IsPaid             bool                     `json:"is_paid"`
	PaymentLinkURL     *string                  `json:"payment_link_url"`
	CreatedAt          time.Time                `json:"created_at"`
	UpdatedAt          time.Time                `json:"updated_at"`
}

func toItemInputs(items []itemRequest) []invoicedomain.ItemInput {
	out := make([]invoicedomain.ItemInput, 0, len(items))
	for _, item := range items {
		out = append(out, invoicedomain.ItemInput{
			Description: item.Description,
			Amount:      item.Amount,
		})
	}
	return out
}

func newCustomerSummaryResponse(c *invoicedomain.CustomerSummary) *customerSummaryResponse {
	if c == nil {
		return nil
	}
	return &customerSummaryResponse{
		ID:      c.ID.String(),
		Name:    c.Name,
		Email:   c.Email,
		Phone:   c.Phone,
		Address: c.Address,
	}
}

func newInvoiceResponse(inv *invoicedomain.Invoice) invoiceResponse {
	items := make([]itemResponse, 0, len(inv.Items))
	for _, item := range inv.Items {
		resp := itemResponse{
			Description: item.Description,
			Amount:      format.Amount(item.Amount),
		}
		if item.ID != 0 {
			resp.ID = item.ID.String()
		}
		items = append(items, resp)
	}

	var recurringID *string
	if inv.RecurringInvoiceID != nil {
		id := inv.RecurringInvoiceID.String()
		recurringID = &id
	}

	return invoiceResponse{
		ID:                 inv.ID.String(),
		InvoiceNumber:      inv.InvoiceNumber,
		DisplayNumber:      format.DisplayNumber(inv.InvoiceNumber),
		CustomerID:         inv.CustomerID.String(),
		Customer:           newCustomerSummaryResponse(inv.Customer),
		RecurringInvoiceID: recurringID,
		Date:               inv.Date,
		Items:              items,
		Amount:             format.Amount(inv.Amount),
		IsPaid:             inv.IsPaid,
		PaymentLinkURL:     inv.PaymentLinkURL,
		CreatedAt:          inv.CreatedAt,
		UpdatedAt:          inv.UpdatedAt,
	}
}

func warningsOrEmpty(warnings []delivery.Warning) []delivery.Warning {
	if warnings == nil {
		return []delivery.Warning{}
	}
	return warnings
}

func (s *Server) ListInvoices(c *gin.Context) {
	invoices, err := s.invoiceSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]invoiceResponse, 0, len(invoices))
	for i := range invoices {
		out = append(out, newInvoiceResponse(&invoices[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	inv, err := s.invoiceSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newInvoiceResponse(inv)})
}

// CreateInvoice commits the invoice first. Payment link, PDF and email
// failures only show up as warnings.
func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	inv, err := s.invoiceSvc.Create(c.Request.Context(), invoicedomain.CreateInvoiceRequest{
		CustomerID: strings.TrimSpace(req.CustomerID),
		Date:       strings.TrimSpace(req.Date),
		Items:      toItemInputs(req.Items),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result := s.delivery.DeliverInvoice(c.Request.Context(), inv, delivery.Options{})
	c.JSON(http.StatusCreated, gin.H{
		"data":     newInvoiceResponse(inv),
		"warnings": warningsOrEmpty(result.Warnings),
	})
}

// UpdateInvoice replaces the header and the full item set. It makes sure a
// payment link exists but does not email the customer again.
func (s *Server) UpdateInvoice(c *gin.Context) {
	var req updateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	inv, err := s.invoiceSvc.Update(c.Request.Context(), invoicedomain.UpdateInvoiceRequest{
		ID:         strings.TrimSpace(c.Param("id")),
		CustomerID: strings.TrimSpace(req.CustomerID),
		Date:       strings.TrimSpace(req.Date),
		IsPaid:     req.IsPaid,
		Items:      toItemInputs(req.Items),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result := s.delivery.DeliverInvoice(c.Request.Context(), inv, delivery.Options{SkipEmail: true})
	c.JSON(http.StatusOK, gin.H{
		"data":     newInvoiceResponse(inv),
		"warnings": warningsOrEmpty(result.Warnings),
	})
}

func (s *Server) MarkInvoicePaid(c *gin.Context) {
	var req markPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.IsPaid == nil {
		AbortWithError(c, newValidationError("is_paid", "required", "is_paid is required"))
		return
	}

	inv, err := s.invoiceSvc.MarkPaid(c.Request.Context(), strings.TrimSpace(c.Param("id")), *req.IsPaid)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newInvoiceResponse(inv)})
}

// EmailInvoice is the explicit resend. Here a delivery failure is the
// request failing.
func (s *Server) EmailInvoice(c *gin.Context) {
	inv, err := s.invoiceSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.delivery.SendInvoiceEmail(c.Request.Context(), inv); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": newInvoiceResponse(inv)})
}

func (s *Server) DownloadInvoice(c *gin.Context) {
	inv, err := s.invoiceSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	body, fileName, err := s.delivery.RenderInvoicePDF(c.Request.Context(), inv)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+fileName+`"`)
	c.Data(http.StatusOK, "application/pdf", body)
}

func (s *Server) DeleteInvoice(c *gin.Context) {
	if err := s.invoiceSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
