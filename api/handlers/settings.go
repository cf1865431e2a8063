package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reviewloop/reviewloop/internal/enum"
	"github.com/reviewloop/reviewloop/services/tenant"
)

type SettingsHandler struct {
	service tenant.Service
}

func NewSettingsHandler(service tenant.Service) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// CreateTenant is the only tenant-scoped call made without a tenant header
func (h *SettingsHandler) CreateTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := startSpan(c, "SettingsHandler.CreateTenant")
		defer span.Finish()

		var input tenant.CreateInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBadRequest(c, span, err)
			return
		}

		created, err := h.service.Create(ctx, input)
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

func (h *SettingsHandler) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := startSpan(c, "SettingsHandler.Get")
		defer span.Finish()

		result, err := h.service.Get(ctx, tenantID(ctx))
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func (h *SettingsHandler) Update() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := startSpan(c, "SettingsHandler.Update")
		defer span.Finish()

		var input tenant.SettingsInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBadRequest(c, span, err)
			return
		}

		result, err := h.service.UpdateSettings(ctx, tenantID(ctx), input)
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func (h *SettingsHandler) DeleteTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := startSpan(c, "SettingsHandler.DeleteTenant")
		defer span.Finish()

		if err := h.service.Delete(ctx, tenantID(ctx)); err != nil {
			respondError(c, span, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// SaveTemplate stores a global template (PUT /templates/:type) or a step
// override (PUT /programs/:id/steps/:stepId/template)
func (h *SettingsHandler) SaveTemplate() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := startSpan(c, "SettingsHandler.SaveTemplate")
		defer span.Finish()

		var input tenant.TemplateInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBadRequest(c, span, err)
			return
		}

		emailType := enum.EmailType(c.Param("type"))
		stepID := c.Param("stepId")
		if stepID != "" {
			emailType = enum.EmailTypeRetention
		}

		template, err := h.service.SaveTemplate(ctx, tenantID(ctx), emailType, c.Param("id"), stepID, input)
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, template)
	}
}
