package routes

import (
	"time"

	"profitpilot/handlers"
	"profitpilot/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterOnboardingRoutes registers the wizard endpoints.
func RegisterOnboardingRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/onboarding")
	{
		// Mount may start a new session, so the token is optional there.
		api.POST("/mount", middleware.WizardSessionMiddleware(true), hb.MountOnboardingHandler)

		session := api.Group("")
		session.Use(middleware.WizardSessionMiddleware(false))
		session.GET("/view", hb.OnboardingViewHandler)
		session.PATCH("/form", hb.UpdateOnboardingHandler)
		session.POST("/next", hb.NextOnboardingHandler)
		session.GET("/reference", hb.ReferenceDataHandler)
		session.DELETE("", hb.ClearOnboardingHandler)
	}
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/health", hb.HealthHandler)
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", middleware.SessionHeader, "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterOnboardingRoutes(r, hb)
	RegisterHealthRoute(r, hb)
}
