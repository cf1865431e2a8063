package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/reviewloop/reviewloop/internal/utils"
)

const RequestIdHeader = "X-Request-Id"

// CustomContextMiddleware adds custom context to all requests
func CustomContextMiddleware(appSource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestId := c.GetHeader(RequestIdHeader)
		if requestId == "" {
			requestId = utils.GenerateNanoIDWithPrefix("req", 16)
		}
		c.Set("RequestId", requestId)
		c.Header(RequestIdHeader, requestId)

		ctx := utils.WithCustomContextFromGinRequest(c, appSource)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
