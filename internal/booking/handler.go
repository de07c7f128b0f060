package booking

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Durgesh2022/yoga-app/internal/api"
	"github.com/Durgesh2022/yoga-app/internal/astrologer"
	"github.com/Durgesh2022/yoga-app/internal/auth"
	"github.com/Durgesh2022/yoga-app/internal/logger"
	"github.com/Durgesh2022/yoga-app/internal/wallet"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Catalog godoc
// @Summary      Classes and packages
// @Tags         bookings
// @Produce      json
// @Success      200  {array}  CatalogItem
// @Router       /bookings/catalog [get]
func (h *Handler) Catalog(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Catalog())
}

// Create godoc
// @Summary      Create booking
// @Description  Creates a pending booking. Classes and packages are priced from the catalog, sessions from the astrologer's services.
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreateRequest  true  "Booking"
// @Success      201      {object}  Booking
// @Failure      400      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Router       /bookings [post]
func (h *Handler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.BindingError(err))
		return
	}

	b, err := h.service.Create(c.Request.Context(), actor.UserID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// List godoc
// @Summary      My bookings
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "pending | paid | fulfilled | cancelled"
// @Param        limit   query     int     false  "Page size"
// @Param        offset  query     int     false  "Offset"
// @Success      200     {array}   Booking
// @Router       /bookings [get]
func (h *Handler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	limit, err1 := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, err2 := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid pagination"})
		return
	}

	bookings, err := h.service.List(c.Request.Context(), actor.UserID, Status(c.Query("status")), limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// Get godoc
// @Summary      Booking details
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Booking ID"
// @Success      200  {object}  Booking
// @Failure      404  {object}  api.ErrorResponse
// @Router       /bookings/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	b, err := h.service.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// Pay godoc
// @Summary      Pay for a booking from the wallet
// @Description  Debits the wallet once per booking. On insufficient balance responds 402 with the shortfall to top up.
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Booking ID"
// @Success      200  {object}  PayResponse
// @Failure      402  {object}  wallet.ShortfallResponse
// @Failure      404  {object}  api.ErrorResponse
// @Failure      409  {object}  api.ErrorResponse
// @Router       /bookings/{id}/pay [post]
func (h *Handler) Pay(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	resp, err := h.service.Pay(c.Request.Context(), actor, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cancel godoc
// @Summary      Cancel booking
// @Description  A paid booking is refunded to the wallet.
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Booking ID"
// @Success      200  {object}  CancelResponse
// @Failure      404  {object}  api.ErrorResponse
// @Failure      409  {object}  api.ErrorResponse
// @Router       /bookings/{id}/cancel [post]
func (h *Handler) Cancel(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	resp, err := h.service.Cancel(c.Request.Context(), actor, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Fulfil godoc
// @Summary      Mark booking fulfilled
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Booking ID"
// @Success      200  {object}  Booking
// @Failure      404  {object}  api.ErrorResponse
// @Failure      409  {object}  api.ErrorResponse
// @Router       /admin/bookings/{id}/fulfil [post]
func (h *Handler) Fulfil(c *gin.Context) {
	actor, id, ok := actorAndID(c)
	if !ok {
		return
	}

	b, err := h.service.Fulfil(c.Request.Context(), actor, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func currentActor(c *gin.Context) (Actor, bool) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return Actor{}, false
	}
	role, _ := auth.GetUserRole(c)
	return Actor{UserID: userID, Role: role}, true
}

func actorAndID(c *gin.Context) (Actor, int, bool) {
	actor, ok := currentActor(c)
	if !ok {
		return Actor{}, 0, false
	}
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid booking id"})
		return Actor{}, 0, false
	}
	return actor, id, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		verr  *api.ValidationError
		short *wallet.InsufficientBalance
	)
	switch {
	case errors.As(err, &short):
		c.JSON(http.StatusPaymentRequired, wallet.ShortfallResponse{
			Success:   false,
			Error:     "insufficient balance",
			Required:  short.Required,
			Available: short.Available,
			Shortfall: short.Shortfall,
		})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: verr.Error()})
	case errors.Is(err, astrologer.ErrServiceNotOffered):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrBookingNotFound), errors.Is(err, astrologer.ErrAstrologerNotFound), errors.Is(err, wallet.ErrUserNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrBookingClosed), errors.Is(err, ErrAstrologerUnavailable), errors.Is(err, wallet.ErrIdempotencyConflict):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
	default:
		logger.WithError(err).Error("booking request failed", "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "internal error"})
	}
}
