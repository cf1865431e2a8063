package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	api_errors "github.com/reviewloop/reviewloop/api/errors"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/internal/utils"
)

func startSpan(c *gin.Context, operationName string) (opentracing.Span, context.Context) {
	span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), operationName)
	tracing.SetDefaultRestSpanTags(ctx, span)
	return span, ctx
}

func tenantID(ctx context.Context) string {
	return utils.GetTenantFromContext(ctx)
}

func respondError(c *gin.Context, span opentracing.Span, err error) {
	status, body := api_errors.Status(err)
	if status >= 500 {
		tracing.TraceErr(span, err)
	} else {
		span.LogKV("response.error", err.Error())
	}
	c.AbortWithStatusJSON(status, body)
}

func respondBadRequest(c *gin.Context, span opentracing.Span, err error) {
	span.LogKV("request.invalid", err.Error())
	c.AbortWithStatusJSON(400, api_errors.ErrorResponse{Error: err.Error(), Code: "invalid_input"})
}
