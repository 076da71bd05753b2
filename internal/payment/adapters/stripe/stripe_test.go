package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/justinhw1987/invoiceflow/internal/clock"
	"github.com/justinhw1987/invoiceflow/internal/config"
	paymentdomain "github.com/justinhw1987/invoiceflow/internal/payment/domain"
	"go.uber.org/zap"
)

func newVerifier(secret string, now time.Time) *Verifier {
	holder := config.NewStaticIntegrations(config.Integrations{
		Stripe: config.StripeConfig{WebhookSecret: secret, APIBaseURL: "https://api.stripe.com"},
	})
	return NewVerifier(holder, clock.NewFakeClock(now))
}

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_123","type":"checkout.session.completed","data":{"object":{}}}`)
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	verifier := newVerifier(secret, now)

	if err := verifier.Verify(payload, SignatureHeaderValue(secret, payload, now)); err != nil {
		t.Fatalf("expected valid signature, got error: %v", err)
	}

	if err := verifier.Verify(payload, SignatureHeaderValue("wrong", payload, now)); !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature error, got %v", err)
	}

	tampered := append([]byte{}, payload...)
	tampered[len(tampered)-2] = ' '
	if err := verifier.Verify(tampered, SignatureHeaderValue(secret, payload, now)); !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected tampered payload to fail, got %v", err)
	}

	if err := verifier.Verify(payload, ""); !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected missing header to fail, got %v", err)
	}
}

func TestVerifyAcceptsAnyMatchingV1(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	ts := fmt.Sprintf("%d", now.Unix())
	header := fmt.Sprintf("t=%s,v1=%s,v1=%s", ts, Sign("old_secret", ts, payload), Sign(secret, ts, payload))

	if err := newVerifier(secret, now).Verify(payload, header); err != nil {
		t.Fatalf("expected rotated signature set to verify, got %v", err)
	}
}

func TestVerifyRejectsStaleTimestamp(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	header := SignatureHeaderValue(secret, payload, now.Add(-6*time.Minute))

	if err := newVerifier(secret, now).Verify(payload, header); !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected stale timestamp to fail, got %v", err)
	}
}

func TestVerifyWithoutSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()
	err := newVerifier("", now).Verify(payload, SignatureHeaderValue("whsec", payload, now))
	if !errors.Is(err, paymentdomain.ErrWebhookNotConfigured) {
		t.Fatalf("expected ErrWebhookNotConfigured, got %v", err)
	}
}

func TestParseEvent(t *testing.T) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	invoiceID := node.Generate().String()

	tests := []struct {
		name       string
		event      any
		wantErr    error
		wantRef    string
		wantIntent string
	}{{
		name: "checkout completed with metadata",
		event: map[string]any{
			"id":   "evt_1",
			"type": "checkout.session.completed",
			"data": map[string]any{
				"object": map[string]any{
					"id":             "cs_1",
					"payment_intent": "pi_1",
					"metadata":       map[string]any{"invoice_id": invoiceID},
				},
			},
		},
		wantRef:    invoiceID,
		wantIntent: "pi_1",
	}, {
		name: "checkout completed with expanded intent",
		event: map[string]any{
			"id":   "evt_2",
			"type": "checkout.session.completed",
			"data": map[string]any{
				"object": map[string]any{
					"id":             "cs_2",
					"payment_intent": map[string]any{"id": "pi_2"},
				},
			},
		},
		wantIntent: "pi_2",
	}, {
		name: "other event",
		event: map[string]any{
			"id":   "evt_3",
			"type": "charge.refunded",
			"data": map[string]any{"object": map[string]any{}},
		},
		wantErr: paymentdomain.ErrEventIgnored,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("marshal payload: %v", err)
			}
			event, err := ParseEvent(payload)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse event: %v", err)
			}
			if event.InvoiceRef != tt.wantRef {
				t.Fatalf("expected invoice ref %q, got %q", tt.wantRef, event.InvoiceRef)
			}
			if event.PaymentIntentID != tt.wantIntent {
				t.Fatalf("expected intent %q, got %q", tt.wantIntent, event.PaymentIntentID)
			}
		})
	}

	if _, err := ParseEvent([]byte(`not json`)); !errors.Is(err, paymentdomain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func newTestClient(baseURL string) *Client {
	holder := config.NewStaticIntegrations(config.Integrations{
		Stripe: config.StripeConfig{
			SecretKey:  "sk_test",
			APIBaseURL: baseURL,
			SuccessURL: "https://example.com/thanks",
		},
	})
	return NewClient(config.Config{Currency: "usd"}, holder, zap.NewNop())
}

func TestCreatePaymentLink(t *testing.T) {
	var forms = map[string]url.Values{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk_test" {
			t.Errorf("missing bearer auth")
		}
		if r.Header.Get("Idempotency-Key") == "" {
			t.Errorf("missing idempotency key on %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		values, _ := url.ParseQuery(string(body))
		forms[r.URL.Path] = values

		switch r.URL.Path {
		case "/v1/prices":
			_, _ = w.Write([]byte(`{"id":"price_1"}`))
		case "/v1/payment_links":
			_, _ = w.Write([]byte(`{"id":"plink_1","url":"https://buy.stripe.com/test_1"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	link, err := client.CreatePaymentLink(context.Background(), paymentdomain.PaymentLinkRequest{
		InvoiceID:     snowflake.ID(42),
		InvoiceNumber: "INV-1001",
		AmountCents:   80000,
	})
	if err != nil {
		t.Fatalf("create payment link: %v", err)
	}
	if link.ID != "plink_1" || link.URL != "https://buy.stripe.com/test_1" {
		t.Fatalf("unexpected link: %+v", link)
	}

	price := forms["/v1/prices"]
	if price.Get("unit_amount") != "80000" || price.Get("currency") != "usd" {
		t.Fatalf("unexpected price form: %v", price)
	}
	if price.Get("product_data[name]") != "Invoice INV-1001" {
		t.Fatalf("unexpected product name: %q", price.Get("product_data[name]"))
	}

	linkForm := forms["/v1/payment_links"]
	if linkForm.Get("line_items[0][price]") != "price_1" {
		t.Fatalf("expected price_1 on link, got %v", linkForm)
	}
	if linkForm.Get("metadata[invoice_id]") != "42" || linkForm.Get("payment_intent_data[metadata][invoice_id]") != "42" {
		t.Fatalf("expected invoice metadata on link, got %v", linkForm)
	}
	if linkForm.Get("after_completion[redirect][url]") != "https://example.com/thanks" {
		t.Fatalf("expected redirect url, got %v", linkForm)
	}
}

func TestClientSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Invalid API Key"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).RetrievePaymentIntent(context.Background(), "pi_1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || !strings.Contains(apiErr.Error(), "Invalid API Key") {
		t.Fatalf("unexpected api error: %v", apiErr)
	}
}

func TestRetrievePaymentIntent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/payment_intents/pi_9" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"pi_9","metadata":{"invoice_id":"77"}}`))
	}))
	defer server.Close()

	intent, err := newTestClient(server.URL).RetrievePaymentIntent(context.Background(), "pi_9")
	if err != nil {
		t.Fatalf("retrieve intent: %v", err)
	}
	if intent.Metadata["invoice_id"] != "77" {
		t.Fatalf("expected invoice metadata, got %+v", intent.Metadata)
	}
}

func TestClientDisabledWithoutKey(t *testing.T) {
	holder := config.NewStaticIntegrations(config.Integrations{})
	client := NewClient(config.Config{}, holder, zap.NewNop())
	if client.Enabled() {
		t.Fatalf("expected client to be disabled")
	}
	if _, err := client.CreatePaymentLink(context.Background(), paymentdomain.PaymentLinkRequest{}); !errors.Is(err, paymentdomain.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
