// Package delivery runs the best-effort side effects that follow an invoice
// write: payment link, PDF and email.
package delivery

import "fmt"

const (
	WarningPaymentLinkFailed       = "payment_link_failed"
	WarningPDFRenderFailed         = "pdf_render_failed"
	WarningEmailDeliveryFailed     = "email_delivery_failed"
	WarningEmailSkippedNoRecipient = "email_skipped_no_recipient"
)

const (
	CollaboratorPaymentLink = "payment_link"
	CollaboratorPDF         = "pdf"
	CollaboratorEmail       = "email"
)

// Warning is a collaborator failure that did not fail the request.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Result struct {
	Warnings []Warning
}

func (r *Result) add(code, message string) {
	r.Warnings = append(r.Warnings, Warning{Code: code, Message: message})
}

// Options toggles individual steps of DeliverInvoice.
type Options struct {
	SkipEmail bool
}

// UpstreamError wraps a collaborator failure on paths where the caller asked
// for that collaborator explicitly.
type UpstreamError struct {
	Collaborator string
	Err          error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Collaborator, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
