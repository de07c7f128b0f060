package payment

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Durgesh2022/yoga-app/internal/api"
	"github.com/Durgesh2022/yoga-app/internal/auth"
	"github.com/Durgesh2022/yoga-app/internal/logger"
	"github.com/Durgesh2022/yoga-app/internal/user"
	"github.com/Durgesh2022/yoga-app/internal/wallet"
)

const SignatureHeader = "X-Razorpay-Signature"

type Handler struct {
	service    Service
	presenters Presenters
}

func NewHandler(service Service, presenters Presenters) *Handler {
	return &Handler{service: service, presenters: presenters}
}

// CreateOrder godoc
// @Summary      Create a payment order
// @Description  Creates a gateway order for a wallet top-up. The checkout payload depends on X-Client-Platform (web gets a redirect URL, apps get embedded widget options).
// @Tags         payment
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        X-Client-Platform  header    string              false  "web | android | ios"
// @Param        request            body      CreateOrderRequest  true   "Order"
// @Success      201                {object}  CreateOrderResponse
// @Failure      400                {object}  api.ErrorResponse
// @Failure      503                {object}  api.ErrorResponse
// @Router       /payment/create-order [post]
func (h *Handler) CreateOrder(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.BindingError(err))
		return
	}

	presenter := h.presenters.For(c.GetHeader(PlatformHeader))
	resp, err := h.service.CreateOrder(c.Request.Context(), userID, req, presenter)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Verify godoc
// @Summary      Verify a checkout callback
// @Description  Checks the gateway signature and credits the wallet once per payment id.
// @Tags         payment
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      VerifyRequest  true  "Checkout callback"
// @Success      200      {object}  VerifyResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /payment/verify [post]
func (h *Handler) Verify(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}

	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.BindingError(err))
		return
	}

	resp, err := h.service.Verify(c.Request.Context(), userID, req)
	if err != nil {
		if errors.Is(err, ErrSignatureMismatch) {
			logger.Warn("rejected payment verification",
				"user_id", userID,
				"order_id", req.OrderID,
				"client_ip", c.ClientIP(),
			)
		}
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Webhook godoc
// @Summary      Gateway webhook
// @Description  Signed with the webhook secret in X-Razorpay-Signature. Captured payments are credited idempotently.
// @Tags         payment
// @Accept       json
// @Produce      json
// @Success      200  {object}  api.MessageResponse
// @Failure      400  {object}  api.ErrorResponse
// @Router       /payment/webhook [post]
func (h *Handler) Webhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "cannot read body"})
		return
	}

	if err := h.service.HandleWebhook(c.Request.Context(), body, c.GetHeader(SignatureHeader)); err != nil {
		if errors.Is(err, ErrSignatureMismatch) {
			logger.Warn("rejected webhook", "client_ip", c.ClientIP())
		}
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.MessageResponse{Message: "ok"})
}

// GetOrder godoc
// @Summary      Payment order status
// @Tags         payment
// @Security     BearerAuth
// @Produce      json
// @Param        order_id  path      string  true  "Gateway order id"
// @Success      200       {object}  Order
// @Failure      404       {object}  api.ErrorResponse
// @Router       /payment/orders/{order_id} [get]
func (h *Handler) GetOrder(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}

	order, err := h.service.GetOrder(c.Request.Context(), userID, c.Param("order_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *api.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: verr.Error()})
	case errors.Is(err, ErrSignatureMismatch):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: ErrSignatureMismatch.Error()})
	case errors.Is(err, ErrAmountMismatch):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: ErrAmountMismatch.Error()})
	case errors.Is(err, ErrOrderNotFound), errors.Is(err, user.ErrUserNotFound), errors.Is(err, wallet.ErrUserNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrOrderClosed), errors.Is(err, wallet.ErrIdempotencyConflict):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrGatewayUnavailable):
		c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{Error: "failed to initiate payment"})
	case errors.Is(err, ErrGatewayRejected):
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: "failed to initiate payment"})
	default:
		logger.WithError(err).Error("payment request failed", "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "internal error"})
	}
}
