package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/aquib-J/mysecondbrain-backend/internal/pkg/ctxutil"
)

const correlationIDHeader = "X-Correlation-Id"

// AttachRequestContext stamps every request with a correlation id, taking the
// caller's header value when present and minting one otherwise. The id is
// echoed back on the response so clients can correlate logs.
func AttachRequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if hdr := c.GetHeader(correlationIDHeader); hdr != "" {
			ctx = ctxutil.WithCorrelationID(ctx, hdr)
		}
		ctx, id := ctxutil.EnsureCorrelationID(ctx)
		c.Writer.Header().Set(correlationIDHeader, id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
