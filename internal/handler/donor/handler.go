package donor

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bloodlink/bloodlink-api/internal/handler"
	"github.com/bloodlink/bloodlink-api/internal/middleware"
	"github.com/bloodlink/bloodlink-api/internal/model"
	"github.com/bloodlink/bloodlink-api/internal/service/donor"
	"github.com/bloodlink/bloodlink-api/internal/service/matching"
)

type Handler struct {
	service     *donor.Service
	matchingSvc *matching.Service
}

func NewHandler(service *donor.Service, matchingSvc *matching.Service) *Handler {
	return &Handler{
		service:     service,
		matchingSvc: matchingSvc,
	}
}

func (h *Handler) GetProfile(c *gin.Context) {
	actor, _ := middleware.Actor(c)

	profile, err := h.service.GetProfile(c.Request.Context(), actor.UserID)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(profile))
}

// NearbyRequests lists the pending requests this donor could fulfil,
// urgency first, nearest next.
func (h *Handler) NearbyRequests(c *gin.Context) {
	actor, _ := middleware.Actor(c)

	radiusKm := 0.0
	if raw := c.Query("radius_km"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid radius_km"))
			return
		}
		radiusKm = parsed
	}

	matches, err := h.matchingSvc.NearbyRequests(c.Request.Context(), actor.UserID, radiusKm)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(matches))
}

func (h *Handler) UpdateAvailability(c *gin.Context) {
	actor, _ := middleware.Actor(c)

	var req model.UpdateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.service.SetAvailability(c.Request.Context(), actor.UserID, *req.Availability); err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"availability": *req.Availability}))
}

func (h *Handler) UpdateLocation(c *gin.Context) {
	actor, _ := middleware.Actor(c)

	var req model.UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.service.UpdateLocation(c.Request.Context(), actor.UserID, *req.Latitude, *req.Longitude); err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	donors := r.Group("/donors")
	donors.Use(auth.Authenticate(), auth.RequireRole(model.UserRoleDonor))
	{
		donors.GET("/me", h.GetProfile)
		donors.GET("/me/nearby-requests", h.NearbyRequests)
		donors.PATCH("/me/availability", h.UpdateAvailability)
		donors.PATCH("/me/location", h.UpdateLocation)
	}
}
