package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reviewloop/reviewloop/services/customers"
)

type SyncCustomersRequest struct {
	Customers []customers.CustomerInput `json:"customers" binding:"required"`
}

// SyncCustomers upserts a batch of visits; rejected rows are reported, not fatal
func SyncCustomers(service customers.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := startSpan(c, "Handlers.SyncCustomers")
		defer span.Finish()

		var req SyncCustomersRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, span, err)
			return
		}
		span.LogKV("request.count", len(req.Customers))

		result, err := service.Sync(ctx, tenantID(ctx), req.Customers)
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func ListCustomers(service customers.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := startSpan(c, "Handlers.ListCustomers")
		defer span.Finish()

		result, err := service.List(ctx, tenantID(ctx))
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"customers": result})
	}
}
