package api

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("consumables-backend")

// traced runs h inside a span named after the route.
func traced(name string, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", c.FullPath()),
			))
		defer span.End()
		c.Request = c.Request.WithContext(ctx)
		h(c)
		span.SetAttributes(attribute.Int("http.status_code", c.Writer.Status()))
	}
}
