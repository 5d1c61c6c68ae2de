package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"profitpilot/middleware"
	"profitpilot/services/wizard"
	"profitpilot/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OnboardingHandler exposes the wizard of each session over HTTP.
type OnboardingHandler struct {
	Registry      *wizard.Registry
	NewController func(sessionID string) *wizard.Controller
	SessionTTL    time.Duration
	ReferenceWait time.Duration
}

// NewOnboardingHandler creates a handler that builds controllers with factory.
func NewOnboardingHandler(registry *wizard.Registry, factory func(sessionID string) *wizard.Controller, sessionTTL time.Duration) *OnboardingHandler {
	return &OnboardingHandler{
		Registry:      registry,
		NewController: factory,
		SessionTTL:    sessionTTL,
		ReferenceWait: 5 * time.Second,
	}
}

// MountHandler loads the wizard for the page's query string. A request without a
// session token starts a new session and receives its token.
func (h *OnboardingHandler) MountHandler(c *gin.Context) {
	logger := getLogger(c)
	sessionID := c.GetString(middleware.SessionIDKey)

	var issued string
	if sessionID == "" {
		sessionID = uuid.New().String()
		token, err := utils.GenerateSessionToken(sessionID, h.SessionTTL)
		if err != nil {
			logger.Error("failed to issue session token", zap.Error(err))
			utils.JSONError(c, http.StatusInternalServerError, "Failed to start onboarding", "")
			return
		}
		issued = token
		logger.Info("onboarding session started", zap.String("sessionID", sessionID))
	}

	ctrl := h.controllerFor(sessionID)
	if ctrl.Finished() {
		// Reloading after the dashboard exit starts over from the cleared snapshot.
		h.Registry.Remove(sessionID)
		ctrl = h.controllerFor(sessionID)
	}

	view := ctrl.Mount(c.Request.Context(), wizard.MountParamsFromQuery(c.Request.URL.Query()))
	resp := gin.H{"view": view}
	if issued != "" {
		resp["session"] = issued
	}
	c.JSON(http.StatusOK, resp)
}

func (h *OnboardingHandler) controllerFor(sessionID string) *wizard.Controller {
	ctrl, _ := h.Registry.GetOrCreate(sessionID, func() *wizard.Controller {
		return h.NewController(sessionID)
	})
	return ctrl
}

// mounted returns the live controller of the request's session or writes an error.
func (h *OnboardingHandler) mounted(c *gin.Context) (*wizard.Controller, bool) {
	ctrl, err := h.Registry.Get(c.GetString(middleware.SessionIDKey))
	if err != nil {
		utils.JSONError(c, http.StatusNotFound, "Onboarding session is not mounted", "Mount the wizard again to continue.")
		return nil, false
	}
	return ctrl, true
}

// ViewHandler returns the current view.
func (h *OnboardingHandler) ViewHandler(c *gin.Context) {
	ctrl, ok := h.mounted(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"view": ctrl.View()})
}

// UpdateFormHandler applies field input.
func (h *OnboardingHandler) UpdateFormHandler(c *gin.Context) {
	ctrl, ok := h.mounted(c)
	if !ok {
		return
	}
	var patch wizard.FormPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid form input", err.Error())
		return
	}
	view, err := ctrl.Update(c.Request.Context(), patch)
	if errors.Is(err, wizard.ErrFinished) {
		utils.JSONError(c, http.StatusGone, "Onboarding already finished", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"view": view})
}

// NextHandler runs the current step's action.
func (h *OnboardingHandler) NextHandler(c *gin.Context) {
	ctrl, ok := h.mounted(c)
	if !ok {
		return
	}
	view, err := ctrl.Next(c.Request.Context())
	switch {
	case errors.Is(err, wizard.ErrStepBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "This step is already being submitted", "view": view})
	case errors.Is(err, wizard.ErrFinished):
		utils.JSONError(c, http.StatusGone, "Onboarding already finished", "")
	case err != nil:
		getLogger(c).Error("wizard next failed", zap.Error(err))
		utils.JSONError(c, http.StatusInternalServerError, "Something went wrong. Please try again.", "")
	default:
		c.JSON(http.StatusOK, gin.H{"view": view})
	}
}

// ReferenceHandler returns the category, experience level and country options. It
// waits up to ReferenceWait for an in-flight fetch and answers 202 when they are not ready.
func (h *OnboardingHandler) ReferenceHandler(c *gin.Context) {
	ctrl, ok := h.mounted(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.ReferenceWait)
	defer cancel()

	data, ready := ctrl.ReferenceData(ctx)
	if !ready {
		c.JSON(http.StatusAccepted, gin.H{"ready": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true, "reference": data})
}

// ClearHandler drops the session's snapshot and controller.
func (h *OnboardingHandler) ClearHandler(c *gin.Context) {
	sessionID := c.GetString(middleware.SessionIDKey)
	h.controllerFor(sessionID).Clear(c.Request.Context())
	h.Registry.Remove(sessionID)
	getLogger(c).Info("onboarding session cleared", zap.String("sessionID", sessionID))
	c.Status(http.StatusNoContent)
}
