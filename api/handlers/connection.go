package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reviewloop/reviewloop/services/connection"
)

func GetMailConnection(service connection.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := startSpan(c, "Handlers.GetMailConnection")
		defer span.Finish()

		result, err := service.Get(ctx, tenantID(ctx))
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// ConnectMail stores the tokens of a completed OAuth handshake
func ConnectMail(service connection.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := startSpan(c, "Handlers.ConnectMail")
		defer span.Finish()

		var input connection.ConnectInput
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBadRequest(c, span, err)
			return
		}

		result, err := service.Connect(ctx, tenantID(ctx), input)
		if err != nil {
			respondError(c, span, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func DisconnectMail(service connection.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := startSpan(c, "Handlers.DisconnectMail")
		defer span.Finish()

		if err := service.Disconnect(ctx, tenantID(ctx)); err != nil {
			respondError(c, span, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
