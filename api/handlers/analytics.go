package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/reviewloop/reviewloop/internal/utils"
	"github.com/reviewloop/reviewloop/services/analytics"
	"github.com/reviewloop/reviewloop/services/reviews"
	"github.com/reviewloop/reviewloop/services/tenant"
)

// parseSince accepts ?since=<RFC3339> or ?days=<n>; neither means all time
func parseSince(c *gin.Context) (time.Time, error) {
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, errors.Wrap(err, "since must be an RFC3339 timestamp")
		}
		return since.UTC(), nil
	}
	if raw := c.Query("days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days <= 0 {
			return time.Time{}, errors.New("days must be a positive integer")
		}
		return utils.StartOfDayInUTC(utils.Now()).AddDate(0, 0, -days), nil
	}
	return time.Time{}, nil
}

func GetAnalytics(service analytics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := startSpan(c, "Handlers.GetAnalytics")
		defer span.Finish()

		since, err := parseSince(c)
		if err != nil {
			respondBadRequest(c, span, err)
			return
		}

		summary, err := service.Summary(ctx, tenantID(ctx), since)
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func LatestReviewSnapshot(service reviews.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := startSpan(c, "Handlers.LatestReviewSnapshot")
		defer span.Finish()

		snapshot, err := service.Latest(ctx, tenantID(ctx))
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"snapshot": snapshot})
	}
}

// TakeReviewSnapshot fetches the tenant's review page now instead of waiting
// for the nightly job
func TakeReviewSnapshot(tenants tenant.Service, service reviews.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := startSpan(c, "Handlers.TakeReviewSnapshot")
		defer span.Finish()

		t, err := tenants.Get(ctx, tenantID(ctx))
		if err != nil {
			respondError(c, span, err)
			return
		}

		snapshot, err := service.TakeSnapshot(ctx, t)
		if err != nil {
			respondError(c, span, err)
			return
		}
		if snapshot == nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no review link configured or no review count found", "code": "no_snapshot"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"snapshot": snapshot})
	}
}
