package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/reviewloop/reviewloop/internal/utils"
)

const TenantKey = "TenantId"

var tenantHeaders = []string{"X-Tenant-Id", "Tenant", "TenantId"}

// TenantValidationMiddleware requires a tenant header and puts the tenant in
// the request context. It runs after CustomContextMiddleware.
func TenantValidationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := ""
		for _, header := range tenantHeaders {
			if value := strings.TrimSpace(c.GetHeader(header)); value != "" {
				tenant = value
				break
			}
		}

		ctx := utils.SetTenantInContext(c.Request.Context(), tenant)
		if err := utils.ValidateTenant(ctx); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "tenant header is required", "code": "tenant_missing"})
			return
		}

		c.Set(TenantKey, tenant)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
