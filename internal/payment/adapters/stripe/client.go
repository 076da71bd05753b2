package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/justinhw1987/invoiceflow/internal/config"
	paymentdomain "github.com/justinhw1987/invoiceflow/internal/payment/domain"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const clientTimeout = 12 * time.Second

// APIError is a non-2xx answer from the processor.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("stripe: status %d", e.StatusCode)
	}
	return fmt.Sprintf("stripe: status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the processor REST API with form-encoded requests.
// Credentials come from the integrations holder on every call.
type Client struct {
	integrations *config.IntegrationsHolder
	httpClient   *http.Client
	currency     string
	log          *zap.Logger
}

func NewClient(cfg config.Config, integrations *config.IntegrationsHolder, log *zap.Logger) *Client {
	return &Client{
		integrations: integrations,
		httpClient:   &http.Client{Timeout: clientTimeout},
		currency:     cfg.Currency,
		log:          log.Named("payment.stripe"),
	}
}

func (c *Client) Enabled() bool {
	return c.integrations.Get().Stripe.PaymentLinksEnabled()
}

// CreatePaymentLink creates an inline price and a payment link for it. The
// invoice id is written to both the link and the payment intent metadata so
// the webhook can correlate either way.
func (c *Client) CreatePaymentLink(ctx context.Context, req paymentdomain.PaymentLinkRequest) (*paymentdomain.PaymentLink, error) {
	creds := c.integrations.Get().Stripe
	if !creds.PaymentLinksEnabled() {
		return nil, paymentdomain.ErrNotConfigured
	}

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = c.currency
	}
	name := strings.TrimSpace(req.Description)
	if name == "" {
		name = "Invoice " + req.InvoiceNumber
	}

	priceForm := url.Values{}
	priceForm.Set("currency", currency)
	priceForm.Set("unit_amount", strconv.FormatInt(req.AmountCents, 10))
	priceForm.Set("product_data[name]", name)

	var price struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, creds, http.MethodPost, "/v1/prices", priceForm, &price); err != nil {
		return nil, err
	}

	invoiceID := req.InvoiceID.String()
	linkForm := url.Values{}
	linkForm.Set("line_items[0][price]", price.ID)
	linkForm.Set("line_items[0][quantity]", "1")
	linkForm.Set("metadata[invoice_id]", invoiceID)
	linkForm.Set("payment_intent_data[metadata][invoice_id]", invoiceID)
	if success := strings.TrimSpace(creds.SuccessURL); success != "" {
		linkForm.Set("after_completion[type]", "redirect")
		linkForm.Set("after_completion[redirect][url]", success)
	}

	var link struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := c.do(ctx, creds, http.MethodPost, "/v1/payment_links", linkForm, &link); err != nil {
		return nil, err
	}

	c.log.Info("payment link created",
		zap.String("invoice_id", invoiceID),
		zap.String("payment_link_id", link.ID),
	)
	return &paymentdomain.PaymentLink{ID: link.ID, URL: link.URL}, nil
}

func (c *Client) RetrievePaymentIntent(ctx context.Context, id string) (*paymentdomain.PaymentIntent, error) {
	creds := c.integrations.Get().Stripe
	if !creds.PaymentLinksEnabled() {
		return nil, paymentdomain.ErrNotConfigured
	}

	var intent struct {
		ID       string            `json:"id"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := c.do(ctx, creds, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(id), nil, &intent); err != nil {
		return nil, err
	}
	return &paymentdomain.PaymentIntent{ID: intent.ID, Metadata: intent.Metadata}, nil
}

func (c *Client) do(ctx context.Context, creds config.StripeConfig, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, creds.APIBaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+creds.SecretKey)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if method == http.MethodPost {
		req.Header.Set("Idempotency-Key", ulid.Make().String())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil {
			apiErr.Type = envelope.Error.Type
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
