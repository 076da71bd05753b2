package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/justinhw1987/invoiceflow/internal/invoice/format"
	recurringdomain "github.com/justinhw1987/invoiceflow/internal/recurring/domain"
)

type recurringInvoiceRequest struct {
	CustomerID string        `json:"customer_id"`
	Name       string        `json:"name"`
	Frequency  string        `json:"frequency"`
	StartDate  string        `json:"start_date"`
	EndDate    *string       `json:"end_date"`
	IsActive   *bool         `json:"is_active"`
	Items      []itemRequest `json:"items"`
}

type recurringInvoiceResponse struct {
	ID              string                   `json:"id"`
	CustomerID      string                   `json:"customer_id"`
	Customer        *customerSummaryResponse `json:"customer,omitempty"`
	Name            string                   `json:"name"`
	Frequency       string                   `json:"frequency"`
	StartDate       string                   `json:"start_date"`
	EndDate         *string                  `json:"end_date"`
	NextInvoiceDate string                   `json:"next_invoice_date"`
	LastInvoiceDate *string                  `json:"last_invoice_date"`
	IsActive        bool                     `json:"is_active"`
	Items           []itemResponse           `json:"items"`
	Amount          string                   `json:"amount"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

func newRecurringInvoiceResponse(t *recurringdomain.Template) recurringInvoiceResponse {
	items := make([]itemResponse, 0, len(t.Items))
	for _, item := range t.Items {
		items = append(items, itemResponse{
			ID:          item.ID.String(),
			Description: item.Description,
			Amount:      format.Amount(item.Amount),
		})
	}
	return recurringInvoiceResponse{
		ID:              t.ID.String(),
		CustomerID:      t.CustomerID.String(),
		Customer:        newCustomerSummaryResponse(t.Customer),
		Name:            t.Name,
		Frequency:       string(t.Frequency),
		StartDate:       t.StartDate,
		EndDate:         t.EndDate,
		NextInvoiceDate: t.NextInvoiceDate,
		LastInvoiceDate: t.LastInvoiceDate,
		IsActive:        t.IsActive,
		Items:           items,
		Amount:          format.Amount(t.Amount),
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func (s *Server) ListRecurringInvoices(c *gin.Context) {
	templates, err := s.recurringSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := make([]recurringInvoiceResponse, 0, len(templates))
	for i := range templates {
		out = append(out, newRecurringInvoiceResponse(&templates[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (s *Server) GetRecurringInvoice(c *gin.Context) {
	t, err := s.recurringSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newRecurringInvoiceResponse(t)})
}

func (s *Server) CreateRecurringInvoice(c *gin.Context) {
	var req recurringInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	t, err := s.recurringSvc.Create(c.Request.Context(), recurringdomain.CreateTemplateRequest{
		CustomerID: strings.TrimSpace(req.CustomerID),
		Name:       req.Name,
		Frequency:  req.Frequency,
		StartDate:  strings.TrimSpace(req.StartDate),
		EndDate:    req.EndDate,
		IsActive:   req.IsActive,
		Items:      toItemInputs(req.Items),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": newRecurringInvoiceResponse(t)})
}

func (s *Server) UpdateRecurringInvoice(c *gin.Context) {
	var req recurringInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	t, err := s.recurringSvc.Update(c.Request.Context(), recurringdomain.UpdateTemplateRequest{
		ID:         strings.TrimSpace(c.Param("id")),
		CustomerID: strings.TrimSpace(req.CustomerID),
		Name:       req.Name,
		Frequency:  req.Frequency,
		StartDate:  strings.TrimSpace(req.StartDate),
		EndDate:    req.EndDate,
		IsActive:   req.IsActive,
		Items:      toItemInputs(req.Items),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": newRecurringInvoiceResponse(t)})
}

// DeleteRecurringInvoice keeps the invoices generated from the template.
func (s *Server) DeleteRecurringInvoice(c *gin.Context) {
	if err := s.recurringSvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) GenerateRecurringInvoice(c *gin.Context) {
	result, err := s.recurringSvc.Generate(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"data": gin.H{
			"invoice":  newInvoiceResponse(result.Invoice),
			"template": newRecurringInvoiceResponse(result.Template),
		},
		"warnings": warningsOrEmpty(result.Warnings),
	})
}
