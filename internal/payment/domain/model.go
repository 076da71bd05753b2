package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventRecord is a processed processor notification. The unique pair
// (provider, provider_event_id) makes redeliveries detectable.
type EventRecord struct {
	ID              snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider        string         `json:"provider" gorm:"type:varchar(32);not null;uniqueIndex:ux_payment_events_provider_event,priority:1"`
	ProviderEventID string         `json:"provider_event_id" gorm:"type:varchar(255);not null;uniqueIndex:ux_payment_events_provider_event,priority:2"`
	EventType       string         `json:"event_type" gorm:"type:text;not null"`
	InvoiceID       snowflake.ID   `json:"invoice_id" gorm:"not null;index"`
	Payload         datatypes.JSON `json:"payload" gorm:"not null"`
	ReceivedAt      time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt     *time.Time     `json:"processed_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

const ProviderStripe = "stripe"

const EventTypeCheckoutCompleted = "checkout.session.completed"

// CheckoutCompleted is the parsed form of a completed checkout session.
type CheckoutCompleted struct {
	EventID         string
	SessionID       string
	PaymentIntentID string
	// InvoiceRef is the invoice id embedded as metadata when the link was
	// created. It may be empty on the session and only present on the intent.
	InvoiceRef string
}

// PaymentLinkRequest describes the hosted checkout for one invoice.
type PaymentLinkRequest struct {
	InvoiceID     snowflake.ID
	InvoiceNumber string
	AmountCents   int64
	Currency      string
	Description   string
}

type PaymentLink struct {
	ID  string
	URL string
}

type PaymentIntent struct {
	ID       string
	Metadata map[string]string
}
