package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestRequestTiming_SpanInRequestContext(t *testing.T) {
	router := gin.New()
	router.Use(RequestTiming())

	var inHandler trace.SpanContext
	router.GET("/v1/teams/:team_number", func(c *gin.Context) {
		inHandler = trace.SpanContextFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/teams/7", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	// the default no-op provider still propagates the (invalid) span context
	assert.False(t, inHandler.IsSampled())
	assert.Empty(t, w.Header().Get(TraceIDHeader))
}

func TestRequestTiming_SampledRequestGetsTraceID(t *testing.T) {
	provider := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = provider.Shutdown(context.Background())
	})

	router := gin.New()
	router.Use(RequestTiming())
	router.GET("/v1/groups", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/groups", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, w.Header().Get(TraceIDHeader), 32)
}

func TestRequestTiming_UnmatchedRoute(t *testing.T) {
	router := gin.New()
	router.Use(RequestTiming())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "503", statusLabel(503))

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
	assert.Equal(t, "unmatched", routeLabel(c))
}
