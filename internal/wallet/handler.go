package wallet

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Durgesh2022/yoga-app/internal/api"
	"github.com/Durgesh2022/yoga-app/internal/auth"
	"github.com/Durgesh2022/yoga-app/internal/logger"
)

type Handler struct {
	service  Service
	currency string
}

func NewHandler(service Service, currency string) *Handler {
	return &Handler{service: service, currency: currency}
}

type BalanceResponse struct {
	UserID         int    `json:"user_id"`
	Balance        int64  `json:"balance"`
	DisplayBalance string `json:"display_balance"`
	Currency       string `json:"currency"`
}

type TransactionsResponse struct {
	Transactions []HistoryItem `json:"transactions"`
	Limit        int           `json:"limit"`
	Offset       int           `json:"offset"`
}

type DeductRequest struct {
	UserID      int    `json:"user_id" binding:"omitempty,gt=0"`
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	BookingID   string `json:"booking_id" binding:"required,max=100"`
	Description string `json:"description" binding:"max=255"`
	Category    string `json:"category" binding:"omitempty,oneof=booking_payment package_purchase consultation astrologer_session"`
}

type DeductResponse struct {
	Success     bool         `json:"success"`
	Duplicate   bool         `json:"duplicate"`
	Balance     int64        `json:"balance"`
	Transaction *Transaction `json:"transaction"`
}

// ShortfallResponse drives the client's top-up flow.
type ShortfallResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Required  int64  `json:"required"`
	Available int64  `json:"available"`
	Shortfall int64  `json:"shortfall"`
}

type AdjustRequest struct {
	UserID         int    `json:"user_id" binding:"required,gt=0"`
	Type           string `json:"type" binding:"required,oneof=credit debit"`
	Amount         int64  `json:"amount" binding:"required,gt=0"`
	Reason         string `json:"reason" binding:"required,max=255"`
	IdempotencyKey string `json:"idempotency_key" binding:"required,max=150"`
}

// GetBalance godoc
// @Summary      Wallet balance
// @Tags         wallet
// @Security     BearerAuth
// @Produce      json
// @Param        user_id  path      int  true  "User ID"
// @Success      200      {object}  BalanceResponse
// @Failure      403      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Router       /wallet/{user_id} [get]
func (h *Handler) GetBalance(c *gin.Context) {
	userID, ok := h.targetUser(c)
	if !ok {
		return
	}

	balance, err := h.service.Balance(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err, "failed to load wallet")
		return
	}

	c.JSON(http.StatusOK, BalanceResponse{
		UserID:         userID,
		Balance:        balance,
		DisplayBalance: FormatAmount(balance),
		Currency:       h.currency,
	})
}

// ListTransactions godoc
// @Summary      Wallet transaction history
// @Description  Most recent first. Each row carries a label and a signed display amount.
// @Tags         wallet
// @Security     BearerAuth
// @Produce      json
// @Param        user_id  path      int  true   "User ID"
// @Param        limit    query     int  false  "Page size (max 100)"
// @Param        offset   query     int  false  "Offset"
// @Success      200      {object}  TransactionsResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      403      {object}  api.ErrorResponse
// @Router       /wallet/{user_id}/transactions [get]
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := h.targetUser(c)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultHistoryLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "limit must be a positive integer"})
		return
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "offset must be a non-negative integer"})
		return
	}

	items, err := h.service.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.writeError(c, err, "failed to load transactions")
		return
	}

	c.JSON(http.StatusOK, TransactionsResponse{Transactions: items, Limit: limit, Offset: offset})
}

// Deduct godoc
// @Summary      Debit the wallet for a booking
// @Description  Idempotent per user and booking_id. Returns 402 with the shortfall when the balance is too low.
// @Tags         wallet
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      DeductRequest  true  "Debit request"
// @Success      200      {object}  DeductResponse
// @Failure      400      {object}  api.ErrorResponse
// @Failure      402      {object}  ShortfallResponse
// @Failure      403      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /wallet/deduct [post]
func (h *Handler) Deduct(c *gin.Context) {
	callerID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}

	var req DeductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.BindingError(err))
		return
	}

	if req.UserID == 0 {
		req.UserID = callerID
	}
	if !auth.CanAccessUser(c, req.UserID) {
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "cannot debit another user's wallet"})
		return
	}

	category := CategoryBookingPayment
	if req.Category != "" {
		category = Category(req.Category)
	}

	res, err := h.service.Debit(c.Request.Context(), Entry{
		UserID:         req.UserID,
		Category:       category,
		Amount:         req.Amount,
		Description:    req.Description,
		BookingID:      req.BookingID,
		IdempotencyKey: DeductKey(req.UserID, req.BookingID),
	})
	if err != nil {
		h.writeError(c, err, "failed to debit wallet")
		return
	}

	c.JSON(http.StatusOK, DeductResponse{
		Success:     true,
		Duplicate:   res.Duplicate,
		Balance:     res.Transaction.BalanceAfter,
		Transaction: res.Transaction,
	})
}

// Adjust godoc
// @Summary      Manual wallet adjustment
// @Description  Admin credit or debit, recorded as a new ledger row.
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      AdjustRequest  true  "Adjustment"
// @Success      200      {object}  Result
// @Failure      400      {object}  api.ErrorResponse
// @Failure      402      {object}  ShortfallResponse
// @Router       /admin/wallet/adjust [post]
func (h *Handler) Adjust(c *gin.Context) {
	var req AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.BindingError(err))
		return
	}

	adminID, _ := auth.GetUserID(c)
	e := Entry{
		UserID:         req.UserID,
		Amount:         req.Amount,
		Description:    req.Reason,
		IdempotencyKey: AdminKey(req.IdempotencyKey),
	}

	var (
		res *Result
		err error
	)
	if Type(req.Type) == TypeCredit {
		e.Category = CategoryAdminCredit
		res, err = h.service.Credit(c.Request.Context(), e)
	} else {
		e.Category = CategoryAdminDebit
		res, err = h.service.Debit(c.Request.Context(), e)
	}
	if err != nil {
		h.writeError(c, err, "failed to adjust wallet")
		return
	}

	logger.Info("wallet adjusted by admin", "admin_id", adminID, "user_id", req.UserID, "type", req.Type, "amount", req.Amount)
	c.JSON(http.StatusOK, res)
}

// Audit godoc
// @Summary      Ledger consistency audit
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        user_id  path      int  true  "User ID"
// @Success      200      {object}  AuditReport
// @Failure      404      {object}  api.ErrorResponse
// @Router       /admin/wallet/{user_id}/audit [get]
func (h *Handler) Audit(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid user id"})
		return
	}

	report, err := h.service.Audit(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err, "failed to audit wallet")
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) targetUser(c *gin.Context) (int, bool) {
	userID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid user id"})
		return 0, false
	}
	if !auth.CanAccessUser(c, userID) {
		c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "access denied"})
		return 0, false
	}
	return userID, true
}

func (h *Handler) writeError(c *gin.Context, err error, fallback string) {
	var (
		short *InsufficientBalance
		verr  *api.ValidationError
	)
	switch {
	case errors.As(err, &short):
		c.JSON(http.StatusPaymentRequired, ShortfallResponse{
			Success:   false,
			Error:     "insufficient balance",
			Required:  short.Required,
			Available: short.Available,
			Shortfall: short.Shortfall,
		})
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: verr.Error()})
	case errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "user not found"})
	case errors.Is(err, ErrIdempotencyConflict):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
	default:
		logger.WithError(err).Error(fallback, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: fallback})
	}
}
