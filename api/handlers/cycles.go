package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	api_errors "github.com/reviewloop/reviewloop/api/errors"
	"github.com/reviewloop/reviewloop/dto"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/internal/utils"
	"github.com/reviewloop/reviewloop/services/scheduler"
)

type RunCycleRequest struct {
	// TenantID limits the cycle to one tenant
	TenantID string `json:"tenantId"`
	// At overrides the cycle clock; its UTC date is the cycle day
	At *time.Time `json:"at"`
}

type RunCycleResponse struct {
	dto.CycleSummary
	Error string `json:"error,omitempty"`
}

// RunCycle triggers one scheduling cycle. A cycle stopped early answers with
// the partial summary.
func RunCycle(engine scheduler.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := startSpan(c, "Handlers.RunCycle")
		defer span.Finish()

		var req RunCycleRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondBadRequest(c, span, err)
				return
			}
		}

		now := utils.Now()
		if req.At != nil {
			now = req.At.UTC()
		}

		var summary dto.CycleSummary
		var err error
		if req.TenantID != "" {
			tracing.TagTenant(span, req.TenantID)
			summary, err = engine.RunTenantCycle(ctx, req.TenantID, now)
		} else {
			summary, err = engine.RunCycle(ctx, now)
		}
		tracing.LogObjectAsJson(span, "summary", summary)

		if err != nil {
			status, body := api_errors.Status(err)
			tracing.TraceErr(span, err)
			c.JSON(status, RunCycleResponse{CycleSummary: summary, Error: body.Error})
			return
		}
		c.JSON(http.StatusOK, RunCycleResponse{CycleSummary: summary})
	}
}
