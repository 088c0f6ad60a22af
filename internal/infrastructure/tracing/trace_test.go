package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kiedeng/wecom-integration/internal/shared/id"
)

func TestStartSpanGeneratesRequestID(t *testing.T) {
	tracer := New("test", zap.NewNop())
	defer tracer.Close()

	span, ctx := tracer.StartSpan(context.Background(), "op")
	assert.True(t, strings.HasPrefix(span.RequestID.String(), "req_"))
	assert.Equal(t, span.RequestID, RequestID(ctx))
}

func TestStartSpanReusesContextID(t *testing.T) {
	tracer := New("test", zap.NewNop())
	defer tracer.Close()

	ctx := WithRequestID(context.Background(), id.RequestID("req_fixed"))
	span, _ := tracer.StartSpan(ctx, "op")
	assert.Equal(t, id.RequestID("req_fixed"), span.RequestID)
}

func TestMiddlewareEchoesHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer := New("test", zap.NewNop())
	defer tracer.Close()

	var seen id.RequestID
	r := gin.New()
	r.Use(HTTPMiddleware(tracer))
	r.GET("/ping", func(c *gin.Context) {
		seen = RequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	// Generated when absent
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := w.Header().Get(Header)
	require.NotEmpty(t, generated)
	assert.Equal(t, id.RequestID(generated), seen)

	// Propagated when supplied
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(Header, "req_upstream")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req_upstream", w.Header().Get(Header))
	assert.Equal(t, id.RequestID("req_upstream"), seen)
}
