package pdf

import "context"

// Renderer turns an invoice document into PDF bytes.
type Renderer interface {
	RenderInvoice(ctx context.Context, doc InvoiceDocument) ([]byte, error)
}

type NoOpRenderer struct{}

func (r *NoOpRenderer) RenderInvoice(ctx context.Context, doc InvoiceDocument) ([]byte, error) {
	return nil, nil
}
