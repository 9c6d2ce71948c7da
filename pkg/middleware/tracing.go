package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TraceIDHeader carries the trace id back to the client
const TraceIDHeader = "X-Trace-ID"

var tracer = otel.Tracer("fraud-advisor-api")

// Tracing opens an OpenTelemetry span per request and exposes its trace id.
// Must run after the logger middleware so the request id is already known.
func Tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", route),
				attribute.String("request.id", c.GetString("requestID")),
			),
		)
		defer span.End()

		traceID := span.SpanContext().TraceID()
		if traceID.IsValid() {
			c.Header(TraceIDHeader, traceID.String())
			c.Set("traceID", traceID.String())
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= 500 {
			span.SetStatus(codes.Error, c.Errors.String())
		}
	}
}
