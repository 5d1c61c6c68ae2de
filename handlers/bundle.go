package handlers

import (
	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all your endpoint handlers into one struct.
type HandlerBundle struct {
	// Onboarding endpoints
	MountOnboardingHandler  gin.HandlerFunc
	OnboardingViewHandler   gin.HandlerFunc
	UpdateOnboardingHandler gin.HandlerFunc
	NextOnboardingHandler   gin.HandlerFunc
	ReferenceDataHandler    gin.HandlerFunc
	ClearOnboardingHandler  gin.HandlerFunc

	// Health endpoint
	HealthHandler gin.HandlerFunc
}

// NewHandlerBundle wires the onboarding handler into a bundle.
func NewHandlerBundle(onboarding *OnboardingHandler, health gin.HandlerFunc) *HandlerBundle {
	return &HandlerBundle{
		MountOnboardingHandler:  onboarding.MountHandler,
		OnboardingViewHandler:   onboarding.ViewHandler,
		UpdateOnboardingHandler: onboarding.UpdateFormHandler,
		NextOnboardingHandler:   onboarding.NextHandler,
		ReferenceDataHandler:    onboarding.ReferenceHandler,
		ClearOnboardingHandler:  onboarding.ClearHandler,
		HealthHandler:           health,
	}
}
