package middleware

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTracedApp(t *testing.T) (*fiber.App, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	app := fiber.New()
	app.Use(tracingMiddleware(tp.Tracer("test")))
	app.Get("/api/streams/:id/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"isLive": true})
	})
	app.Post("/api/moderation/:messageId/approve", func(c *fiber.Ctx) error {
		c.Locals("userID", "owner-7")
		return c.SendStatus(fiber.StatusInternalServerError)
	})
	return app, recorder
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracingMiddleware_NamesSpanByRoute(t *testing.T) {
	app, recorder := newTracedApp(t)

	for _, id := range []string{"12", "13"} {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/streams/"+id+"/status", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))
	}

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	for i, want := range []int64{12, 13} {
		assert.Equal(t, "GET /api/streams/:id/status", spans[i].Name())
		attrs := spanAttrs(spans[i])
		assert.Equal(t, want, attrs["stream.id"].AsInt64())
		assert.Equal(t, "/api/streams/:id/status", attrs["http.route"].AsString())
		assert.Equal(t, int64(fiber.StatusOK), attrs["http.status_code"].AsInt64())
		_, hasMessage := attrs["message.id"]
		assert.False(t, hasMessage)
	}
}

func TestTracingMiddleware_TagsMessageAndUser(t *testing.T) {
	app, recorder := newTracedApp(t)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/api/moderation/42/approve", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "POST /api/moderation/:messageId/approve", span.Name())
	attrs := spanAttrs(span)
	assert.Equal(t, int64(42), attrs["message.id"].AsInt64())
	assert.Equal(t, "owner-7", attrs["user.id"].AsString())
	assert.Equal(t, codes.Error, span.Status().Code)
}
