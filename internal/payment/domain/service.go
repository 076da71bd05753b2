package domain

import (
	"context"
	"errors"
)

type Outcome string

const (
	OutcomeApplied   Outcome = "ok"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
)

// Reconciler applies verified payment notifications to invoices.
type Reconciler interface {
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (Outcome, error)
}

// LinkCreator opens hosted checkout pages for invoices.
type LinkCreator interface {
	Enabled() bool
	CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (*PaymentLink, error)
}

// IntentFetcher reads payment intents back from the processor.
type IntentFetcher interface {
	RetrievePaymentIntent(ctx context.Context, id string) (*PaymentIntent, error)
}

var (
	ErrWebhookNotConfigured    = errors.New("webhook_not_configured")
	ErrInvalidSignature        = errors.New("invalid_signature")
	ErrInvalidPayload          = errors.New("invalid_payload")
	ErrInvalidEvent            = errors.New("invalid_event")
	ErrEventIgnored            = errors.New("event_ignored")
	ErrMissingCorrelationID    = errors.New("missing_correlation_id")
	ErrCorrelationLookupFailed = errors.New("correlation_lookup_failed")
	ErrInvoiceNotFound         = errors.New("invoice_not_found")
	ErrNotConfigured           = errors.New("payment_links_not_configured")
)
