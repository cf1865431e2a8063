package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/opentracing/opentracing-go/log"

	"github.com/reviewloop/reviewloop/internal/tracing"
)

// TracingMiddleware opens one server span per request and joins an upstream
// trace when the request carries one
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(
			c.Request.Context(),
			c.Request.Method+" "+c.FullPath(),
			c.Request.Header,
		)
		defer span.Finish()

		tracing.SetDefaultRestSpanTags(ctx, span)
		if requestId := c.GetString("RequestId"); requestId != "" {
			span.SetTag("request-id", requestId)
		}
		for _, name := range []string{"id", "stepId"} {
			if id := c.Param(name); id != "" {
				tracing.TagEntity(span, id)
				break
			}
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		ext.HTTPStatusCode.Set(span, uint16(status))
		if status >= 500 {
			ext.Error.Set(span, true)
			span.LogFields(log.String("event", "error"), log.String("status", fmt.Sprint(status)))
		}
	}
}
