package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"

	"rydz/internal/handler"
	"rydz/internal/middleware"
	internalredis "rydz/internal/redis"
	"rydz/internal/service"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RydHandler         *handler.RydHandler
	DashboardHandler   *handler.DashboardHandler
	AssociationHandler *handler.AssociationHandler
	ProfileHandler     *handler.ProfileHandler
	EventHandler       *handler.EventHandler
	FamilyHandler      *handler.FamilyHandler
	AssistHandler      *handler.AssistHandler
	Verifier           middleware.Verifier
	Cache              internalredis.CacheStoreInterface
	Sweeper            *service.Sweeper
	NewRelicApp        *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Normal traffic opportunistically triggers the staleness sweep.
	if deps.Sweeper != nil {
		router.Use(func(c *gin.Context) {
			deps.Sweeper.MaybeSweep()
			c.Next()
		})
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes: everything past this point carries a verified identity.
	v1 := router.Group("/v1")
	v1.Use(middleware.Auth(deps.Verifier))
	if deps.Cache != nil {
		v1.Use(middleware.Idempotency(deps.Cache))
	}
	{
		// Profile routes.
		profiles := v1.Group("/profiles")
		{
			profiles.POST("", deps.ProfileHandler.RegisterProfile)
			profiles.PATCH("/me", deps.ProfileHandler.UpdateProfile)
			profiles.GET("/:id", deps.ProfileHandler.GetProfile)
		}

		// Ryd lifecycle routes.
		rydz := v1.Group("/rydz")
		{
			rydz.POST("", deps.RydHandler.ProposeRyd)
			rydz.GET("/:id", deps.RydHandler.GetRyd)
			rydz.POST("/:id/seats", deps.RydHandler.RequestSeat)
			rydz.POST("/:id/seats/:passengerId/respond", deps.RydHandler.RespondToSeatRequest)
			rydz.POST("/:id/seats/:passengerId/parental", deps.RydHandler.RespondToParentalApproval)
			rydz.POST("/:id/confirm", deps.RydHandler.ConfirmRydPlan)
			rydz.POST("/:id/advance", deps.RydHandler.AdvanceRydProgress)
			rydz.POST("/:id/cancel", deps.RydHandler.CancelRyd)
			rydz.POST("/:id/passengers/:passengerId/progress", deps.RydHandler.UpdatePassengerProgress)
			rydz.POST("/:id/messages", deps.RydHandler.PostMessage)
		}

		// Dashboard read views.
		dashboard := v1.Group("/dashboard")
		{
			dashboard.GET("/next-ryd", deps.DashboardHandler.GetNextRyd)
			dashboard.GET("/schedule", deps.DashboardHandler.GetSchedule)
		}
		v1.GET("/conversations", deps.DashboardHandler.GetConversations)

		// Association routes.
		associations := v1.Group("/associations")
		{
			associations.POST("/students", deps.AssociationHandler.LinkStudent)
			associations.POST("/drivers", deps.AssociationHandler.ApproveDriver)
			associations.POST("/drivers/revoke", deps.AssociationHandler.RevokeDriver)
		}

		// Event routes.
		events := v1.Group("/events")
		{
			events.POST("", deps.EventHandler.CreateEvent)
			events.GET("", deps.EventHandler.ListEvents)
			events.GET("/:id", deps.EventHandler.GetEvent)
		}

		// Family routes.
		families := v1.Group("/families")
		{
			families.POST("", deps.FamilyHandler.CreateFamily)
			families.GET("/:id", deps.FamilyHandler.GetFamily)
		}

		// Assist routes.
		assist := v1.Group("/assist")
		{
			assist.POST("/suggest-carpool", deps.AssistHandler.SuggestCarpool)
			assist.POST("/help", deps.AssistHandler.Help)
		}
	}

	return router
}
