package middleware

import (
	"time"

	"github.com/desafio-dunas/registration-api/internal/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TraceIDHeader returns the trace id of sampled requests so clients can quote it
const TraceIDHeader = "X-Trace-ID"

// slowRequestThreshold covers a bcrypt compare plus the commit round trips with room to spare
const slowRequestThreshold = 2 * time.Second

// RequestTiming opens a server span per request, continuing any incoming trace
// context, and records the request duration by route.
func RequestTiming() gin.HandlerFunc {
	tracer := otel.Tracer("http")

	return func(c *gin.Context) {
		start := time.Now()
		route := routeLabel(c)

		parent := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(parent, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Request.Method),
				attribute.String("http.route", route),
				attribute.String("http.client_ip", c.ClientIP()),
			),
		)
		defer span.End()

		if sc := span.SpanContext(); sc.IsSampled() {
			c.Header(TraceIDHeader, sc.TraceID().String())
		}
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		span.SetAttributes(
			attribute.Int("http.status_code", status),
			attribute.String("request.id", c.GetString("RequestID")),
		)
		if status >= 500 {
			span.SetStatus(codes.Error, "server error")
		}
		if len(c.Errors) > 0 {
			span.RecordError(c.Errors.Last())
		}

		observability.RequestDuration.WithLabelValues(route, c.Request.Method, statusLabel(status)).
			Observe(latency.Seconds())

		if latency > slowRequestThreshold {
			observability.Logger().Warn("slow request",
				zap.String("route", route),
				zap.String("method", c.Request.Method),
				zap.Int("status", status),
				zap.Duration("latency", latency))
		}
	}
}
