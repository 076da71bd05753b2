package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/justinhw1987/invoiceflow/internal/clock"
	"github.com/justinhw1987/invoiceflow/internal/config"
	paymentdomain "github.com/justinhw1987/invoiceflow/internal/payment/domain"
)

const SignatureHeader = "Stripe-Signature"

// DefaultTolerance bounds how old a signed timestamp may be.
const DefaultTolerance = 5 * time.Minute

const metadataInvoiceID = "invoice_id"

type Verifier struct {
	integrations *config.IntegrationsHolder
	clock        clock.Clock
	tolerance    time.Duration
}

func NewVerifier(integrations *config.IntegrationsHolder, clk clock.Clock) *Verifier {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Verifier{
		integrations: integrations,
		clock:        clk,
		tolerance:    DefaultTolerance,
	}
}

// Verify checks the header against the raw request body. The secret is read
// on every call so a rotated secret applies without restart.
func (v *Verifier) Verify(payload []byte, header string) error {
	secret := strings.TrimSpace(v.integrations.Get().Stripe.WebhookSecret)
	if secret == "" {
		return paymentdomain.ErrWebhookNotConfigured
	}

	header = strings.TrimSpace(header)
	if header == "" {
		return paymentdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseStripeSignature(header)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}

	signedAt, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}
	age := v.clock.Now().Sub(time.Unix(signedAt, 0))
	if age > v.tolerance || age < -v.tolerance {
		return paymentdomain.ErrInvalidSignature
	}

	expected := Sign(secret, timestamp, payload)
	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return paymentdomain.ErrInvalidSignature
}

// Sign computes the v1 signature for timestamp and payload.
func Sign(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeaderValue builds a header the way the processor sends it.
func SignatureHeaderValue(secret string, payload []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", ts, Sign(secret, ts, payload))
}

// ParseEvent decodes a verified payload. Event types other than a completed
// checkout return ErrEventIgnored.
func ParseEvent(payload []byte) (*paymentdomain.CheckoutCompleted, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	if strings.TrimSpace(event.Type) != paymentdomain.EventTypeCheckoutCompleted {
		return nil, paymentdomain.ErrEventIgnored
	}

	var session stripeCheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	return &paymentdomain.CheckoutCompleted{
		EventID:         event.ID,
		SessionID:       session.ID,
		PaymentIntentID: session.paymentIntentID(),
		InvoiceRef:      readMetadataValue(session.Metadata, metadataInvoiceID),
	}, nil
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeCheckoutSession struct {
	ID            string          `json:"id"`
	PaymentIntent json.RawMessage `json:"payment_intent"`
	PaymentStatus string          `json:"payment_status"`
	Metadata      map[string]any  `json:"metadata"`
}

// paymentIntentID accepts both the bare id and an expanded object.
func (s stripeCheckoutSession) paymentIntentID() string {
	if len(s.PaymentIntent) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(s.PaymentIntent, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var expanded struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(s.PaymentIntent, &expanded); err == nil {
		return strings.TrimSpace(expanded.ID)
	}
	return ""
}

func parseStripeSignature(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func readMetadataValue(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	value, ok := metadata[key]
	if !ok {
		return ""
	}
	switch cast := value.(type) {
	case string:
		return strings.TrimSpace(cast)
	case float64:
		if cast == 0 {
			return ""
		}
		return strconv.FormatInt(int64(cast), 10)
	case json.Number:
		return cast.String()
	}
	return ""
}
