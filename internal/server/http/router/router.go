package router

import (
	"log/slog"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/polkiloo/coursemart/internal/metrics"
	"github.com/polkiloo/coursemart/internal/server/http/handlers"
	"github.com/polkiloo/coursemart/internal/server/http/middleware"
)

// Setup configures gin router with handlers and middleware.
func Setup(facade handlers.BillingFacade, m *metrics.Metrics, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(m.Middleware())
	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.DecompressRequest())
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	authHandler := handlers.NewAuthHandler(facade)
	orderHandler := handlers.NewOrderHandler(facade, logger)
	scheduleHandler := handlers.NewScheduleHandler(facade)
	webhookHandler := handlers.NewWebhookHandler(facade, logger)
	healthHandler := handlers.NewHealthHandler(facade)

	engine.GET("/healthz", healthHandler.Check)
	engine.GET("/metrics", gin.WrapH(m.Handler()))
	engine.POST("/webhooks/stripe", webhookHandler.Stripe)

	api := engine.Group("/api")
	api.POST("/operators/login", authHandler.Login)

	operator := api.Group("")
	operator.Use(middleware.AuthRequired(facade))

	orders := operator.Group("/orders/:id")
	orders.GET("", orderHandler.Get)
	orders.GET("/events", orderHandler.Events)
	orders.POST("/advance", orderHandler.Advance)
	orders.POST("/cancel", orderHandler.Cancel)
	orders.POST("/organization", orderHandler.AssignOrganization)
	orders.POST("/payment-method", orderHandler.AttachPaymentMethod)
	orders.POST("/contract", orderHandler.RecordContract)

	operator.POST("/schedule/run", scheduleHandler.Run)

	return engine
}
