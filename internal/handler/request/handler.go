package request

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bloodlink/bloodlink-api/internal/handler"
	"github.com/bloodlink/bloodlink-api/internal/middleware"
	"github.com/bloodlink/bloodlink-api/internal/model"
	"github.com/bloodlink/bloodlink-api/internal/notification"
	"github.com/bloodlink/bloodlink-api/internal/service/donor"
	"github.com/bloodlink/bloodlink-api/internal/service/matching"
	"github.com/bloodlink/bloodlink-api/internal/service/request"
	"github.com/bloodlink/bloodlink-api/internal/service/user"
)

type Handler struct {
	service     *request.Service
	matchingSvc *matching.Service
	userSvc     *user.Service
	donorSvc    *donor.Service
	notifier    notification.Service
}

func NewHandler(service *request.Service, matchingSvc *matching.Service, userSvc *user.Service, donorSvc *donor.Service, notifier notification.Service) *Handler {
	return &Handler{
		service:     service,
		matchingSvc: matchingSvc,
		userSvc:     userSvc,
		donorSvc:    donorSvc,
		notifier:    notifier,
	}
}

func (h *Handler) CreateRequest(c *gin.Context) {
	actor, _ := middleware.Actor(c)

	var req model.CreateRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	created, err := h.service.CreateRequest(c.Request.Context(), actor.UserID, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) CreateHospitalRequest(c *gin.Context) {
	actor, _ := middleware.Actor(c)

	var req model.CreateHospitalRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	created, err := h.service.CreateHospitalRequest(c.Request.Context(), actor.UserID, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(created))
}

func (h *Handler) GetRequest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request ID"))
		return
	}

	req, err := h.service.GetRequest(c.Request.Context(), id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(req))
}

func (h *Handler) ListRequests(c *gin.Context) {
	var filters model.RequestFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	requests, err := h.service.ListRequests(c.Request.Context(), &filters)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(requests))
}

// AcceptRequest is the donor's claim. On success the response carries the
// contact bundle, and the requester is notified out of band.
func (h *Handler) AcceptRequest(c *gin.Context) {
	actor, _ := middleware.Actor(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request ID"))
		return
	}

	result, err := h.matchingSvc.AcceptRequest(c.Request.Context(), actor.UserID, id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	h.notifyAccepted(c, result)

	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}

func (h *Handler) notifyAccepted(c *gin.Context, result *matching.AcceptResult) {
	req := result.Request
	if req.RequesterID == nil || req.DonorID == nil {
		return
	}

	requester, err := h.userSvc.Get(c.Request.Context(), *req.RequesterID)
	if err != nil {
		log.Error().Err(err).Msg("failed to load requester for notification")
		return
	}
	donor, err := h.userSvc.Get(c.Request.Context(), *req.DonorID)
	if err != nil {
		log.Error().Err(err).Msg("failed to load donor for notification")
		return
	}

	if err := h.notifier.NotifyRequestAccepted(c.Request.Context(), requester.Email, donor, result.Contact); err != nil {
		log.Error().Err(err).Msg("failed to send accept notification")
	}
}

func (h *Handler) MarkOnTheWay(c *gin.Context) {
	h.transition(c, h.service.MarkOnTheWay)
}

func (h *Handler) ConfirmRequest(c *gin.Context) {
	h.transition(c, h.service.Confirm)
}

// CompleteRequest closes the donation and thanks the donor out of band.
func (h *Handler) CompleteRequest(c *gin.Context) {
	actor, _ := middleware.Actor(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request ID"))
		return
	}

	updated, err := h.service.Complete(c.Request.Context(), actor, id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	// The completion changed the donor's history; drop their cached stats
	// so the next profile read recounts.
	if updated.DonorID != nil {
		h.donorSvc.InvalidateStats(*updated.DonorID)
	}

	h.notifyCompleted(c, updated)

	c.JSON(http.StatusOK, handler.NewSuccessResponse(updated))
}

func (h *Handler) notifyCompleted(c *gin.Context, req *model.BloodRequest) {
	if req.DonorID == nil {
		return
	}
	donor, err := h.userSvc.Get(c.Request.Context(), *req.DonorID)
	if err != nil {
		log.Error().Err(err).Msg("failed to load donor for notification")
		return
	}
	if err := h.notifier.NotifyRequestCompleted(c.Request.Context(), donor.Email, req); err != nil {
		log.Error().Err(err).Msg("failed to send completion notification")
	}
}

func (h *Handler) CancelRequest(c *gin.Context) {
	h.transition(c, h.service.Cancel)
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, actor model.TokenClaims, id uuid.UUID) (*model.BloodRequest, error)) {
	actor, _ := middleware.Actor(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request ID"))
		return
	}

	updated, err := fn(c.Request.Context(), actor, id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(updated))
}

func (h *Handler) WithdrawRequest(c *gin.Context) {
	actor, _ := middleware.Actor(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid request ID"))
		return
	}

	if err := h.service.Withdraw(c.Request.Context(), actor, id); err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	requests := r.Group("/requests")
	requests.Use(auth.Authenticate())
	{
		requests.POST("", auth.RequireRole(model.UserRoleRequester), h.CreateRequest)
		requests.POST("/hospital", auth.RequireRole(model.UserRoleHospital), h.CreateHospitalRequest)
		requests.GET("", h.ListRequests)
		requests.GET("/:id", h.GetRequest)
		requests.DELETE("/:id", h.WithdrawRequest)
		requests.POST("/:id/accept", auth.RequireRole(model.UserRoleDonor), h.AcceptRequest)
		requests.POST("/:id/on-the-way", auth.RequireRole(model.UserRoleDonor), h.MarkOnTheWay)
		requests.POST("/:id/confirm", auth.RequireRole(model.UserRoleHospital), h.ConfirmRequest)
		requests.POST("/:id/complete", h.CompleteRequest)
		requests.POST("/:id/cancel", h.CancelRequest)
	}
}
