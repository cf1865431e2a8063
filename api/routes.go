package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/reviewloop/reviewloop/api/handlers"
	"github.com/reviewloop/reviewloop/api/middleware"
	"github.com/reviewloop/reviewloop/internal/logger"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/services"
)

const AppSource = "reviewloop"

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, s *services.Services, log logger.Logger, apikey string) {
	if s == nil {
		panic("Services cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	r.GET("/health", handlers.HealthCheck)

	// public tracking entry point, reached from customer inboxes
	public := r.Group("")
	public.Use(middleware.CustomContextMiddleware(AppSource))
	public.Use(middleware.TracingMiddleware())
	public.GET("/r", handlers.Redirect(log, s.ClickResolver))

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  middleware.APIKeyHeader,
		ValidAPIKey: apikey,
	})

	// operator endpoints, not scoped to a tenant header
	admin := r.Group("/v1")
	admin.Use(apiKeyMiddleware)
	admin.Use(middleware.CustomContextMiddleware(AppSource))
	admin.Use(middleware.TracingMiddleware())
	{
		settings := handlers.NewSettingsHandler(s.TenantService)
		admin.POST("/tenants", settings.CreateTenant())
		admin.POST("/cycles", handlers.RunCycle(s.Scheduler))
	}

	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	api.Use(middleware.CustomContextMiddleware(AppSource))
	api.Use(middleware.TenantValidationMiddleware())
	api.Use(middleware.TracingMiddleware())
	{
		settings := handlers.NewSettingsHandler(s.TenantService)
		api.GET("/settings", settings.Get())
		api.PATCH("/settings", settings.Update())
		api.DELETE("/tenant", settings.DeleteTenant())
		api.PUT("/templates/:type", settings.SaveTemplate())

		api.GET("/mail-connection", handlers.GetMailConnection(s.ConnectionService))
		api.PUT("/mail-connection", handlers.ConnectMail(s.ConnectionService))
		api.DELETE("/mail-connection", handlers.DisconnectMail(s.ConnectionService))

		api.GET("/customers", handlers.ListCustomers(s.CustomerService))
		api.POST("/customers", handlers.SyncCustomers(s.CustomerService))

		programs := handlers.NewProgramsHandler(s.CampaignService)
		group := api.Group("/programs")
		{
			group.GET("", programs.List())
			group.POST("", programs.Create())
			group.GET("/:id", programs.Get())
			group.PUT("/:id", programs.Update())
			group.PUT("/:id/enabled", programs.SetEnabled())
			group.POST("/:id/steps", programs.AddStep())
			group.PUT("/:id/steps/:stepId", programs.UpdateStep())
			group.PUT("/:id/steps/:stepId/enabled", programs.SetStepEnabled())
			group.DELETE("/:id/steps/:stepId", programs.DeleteStep())
			group.PUT("/:id/steps/:stepId/template", settings.SaveTemplate())
		}

		api.GET("/analytics", handlers.GetAnalytics(s.AnalyticsService))
		api.GET("/reviews/latest", handlers.LatestReviewSnapshot(s.ReviewService))
		api.POST("/reviews/snapshots", handlers.TakeReviewSnapshot(s.TenantService, s.ReviewService))
	}
}
