package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/services/campaign"
)

type EnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type ProgramsHandler struct {
	service campaign.Service
}

func NewProgramsHandler(service campaign.Service) *ProgramsHandler {
	return &ProgramsHandler{service: service}
}

func (h *ProgramsHandler) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := startSpan(c, "ProgramsHandler.List")
		defer span.Finish()

		programs, err := h.service.ListPrograms(ctx, tenantID(ctx))
		if err != nil {
			respondError(c, span, err)
			return
		}
		if programs == nil {
			programs = []*models.RetentionProgram{}
		}
		c.JSON(http.StatusOK, gin.H{"programs": programs})
	}
}

func (h *ProgramsHandler) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := startSpan(c, "ProgramsHandler.Get")
		defer span.Finish()

		program, err := h.service.GetProgram(ctx, tenantID(ctx), c.Param("id"))
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, program)
	}
}

func (h *ProgramsHandler) Create() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := startSpan(c, "ProgramsHandler.Create")
		defer span.Finish()

		var input campaign.ProgramInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBadRequest(c, span, err)
			return
		}

		program, err := h.service.CreateProgram(ctx, tenantID(ctx), input)
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusCreated, program)
	}
}

func (h *ProgramsHandler) Update() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := startSpan(c, "ProgramsHandler.Update")
		defer span.Finish()

		var input campaign.ProgramInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBadRequest(c, span, err)
			return
		}

		program, err := h.service.UpdateProgram(ctx, tenantID(ctx), c.Param("id"), input)
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, program)
	}
}

func (h *ProgramsHandler) SetEnabled() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := startSpan(c, "ProgramsHandler.SetEnabled")
		defer span.Finish()

		var req EnabledRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, span, err)
			return
		}

		if err := h.service.SetProgramEnabled(ctx, tenantID(ctx), c.Param("id"), *req.Enabled); err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id"), "enabled": *req.Enabled})
	}
}

func (h *ProgramsHandler) AddStep() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := startSpan(c, "ProgramsHandler.AddStep")
		defer span.Finish()

		var input campaign.StepInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBadRequest(c, span, err)
			return
		}

		step, err := h.service.AddStep(ctx, tenantID(ctx), c.Param("id"), input)
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusCreated, step)
	}
}

func (h *ProgramsHandler) UpdateStep() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := startSpan(c, "ProgramsHandler.UpdateStep")
		defer span.Finish()

		var input campaign.StepInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBadRequest(c, span, err)
			return
		}

		step, err := h.service.UpdateStep(ctx, tenantID(ctx), c.Param("id"), c.Param("stepId"), input)
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, step)
	}
}

func (h *ProgramsHandler) SetStepEnabled() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := startSpan(c, "ProgramsHandler.SetStepEnabled")
		defer span.Finish()

		var req EnabledRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, span, err)
			return
		}

		if err := h.service.SetStepEnabled(ctx, tenantID(ctx), c.Param("id"), c.Param("stepId"), *req.Enabled); err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": c.Param("stepId"), "enabled": *req.Enabled})
	}
}

func (h *ProgramsHandler) DeleteStep() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := startSpan(c, "ProgramsHandler.DeleteStep")
		defer span.Finish()

		if err := h.service.DeleteStep(ctx, tenantID(ctx), c.Param("id"), c.Param("stepId")); err != nil {
			respondError(c, span, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
