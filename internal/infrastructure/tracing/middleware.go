package tracing

import (
	"github.com/gin-gonic/gin"

	"github.com/kiedeng/wecom-integration/internal/shared/id"
)

// Header carries the request ID between frontend and backend.
const Header = "X-Request-ID"

// HTTPMiddleware creates gin middleware that assigns request IDs and
// records a span per request.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if incoming := c.GetHeader(Header); incoming != "" {
			ctx = WithRequestID(ctx, id.RequestID(incoming))
		}

		span, ctx := tracer.StartSpan(ctx, c.FullPath())
		span.SetTag("http.method", c.Request.Method)
		span.SetTag("http.path", c.Request.URL.Path)

		c.Request = c.Request.WithContext(ctx)
		c.Header(Header, span.RequestID.String())

		c.Next()

		span.Status = c.Writer.Status()
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}
		span.Finish()
		tracer.Submit(span)
	}
}
