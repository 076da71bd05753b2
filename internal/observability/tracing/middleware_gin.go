package tracing

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/justinhw1987/invoiceflow/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// resourceKeys maps a route prefix to the span attribute carrying its :id.
var resourceKeys = map[string]attribute.Key{
	"/invoices/":           "invoiceflow.invoice_id",
	"/customers/":          "invoiceflow.customer_id",
	"/recurring-invoices/": "invoiceflow.recurring_invoice_id",
}

// GinMiddleware opens one server span per request, named after the matched
// route. Spans carry the signed-in user and the invoice, customer or template
// the route addresses, all of which are opaque snowflake ids.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("invoiceflow/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+c.Request.Method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + c.Request.Method + " " + route)

		// Auth middleware stores the user on the request it forwards.
		reqCtx := c.Request.Context()
		span.SetAttributes(SafeAttributes(append([]attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
			attribute.String("request_id", obscontext.RequestIDFromContext(reqCtx)),
			attribute.String("invoiceflow.user_id", obscontext.UserIDFromContext(reqCtx)),
		}, resourceAttributes(route, c.Param("id"))...)...)...)

		if status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

func resourceAttributes(route, id string) []attribute.KeyValue {
	if id == "" {
		return nil
	}
	for prefix, key := range resourceKeys {
		if strings.HasPrefix(route, prefix) {
			return []attribute.KeyValue{attribute.String(string(key), id)}
		}
	}
	return nil
}
