package astrologer

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Durgesh2022/yoga-app/internal/api"
	"github.com/Durgesh2022/yoga-app/internal/auth"
	"github.com/Durgesh2022/yoga-app/internal/logger"
)

const dateLayout = "2006-01-02"

type Handler struct {
	service Service
	now     func() time.Time
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service, now: time.Now}
}

// List godoc
// @Summary      List astrologers
// @Tags         astrologers
// @Produce      json
// @Param        specialty  query     string  false  "Specialty filter"
// @Param        language   query     string  false  "Language filter"
// @Param        sort       query     string  false  "rating | experience | price"
// @Param        limit      query     int     false  "Page size"
// @Param        offset     query     int     false  "Offset"
// @Success      200        {array}   Astrologer
// @Failure      400        {object}  api.ErrorResponse
// @Router       /astrologers [get]
func (h *Handler) List(c *gin.Context) {
	limit, err1 := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, err2 := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid pagination"})
		return
	}

	list, err := h.service.List(c.Request.Context(), ListFilter{
		Specialty: c.Query("specialty"),
		Language:  c.Query("language"),
		Sort:      c.Query("sort"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Get godoc
// @Summary      Astrologer profile
// @Tags         astrologers
// @Produce      json
// @Param        id   path      int  true  "Astrologer ID"
// @Success      200  {object}  Astrologer
// @Failure      404  {object}  api.ErrorResponse
// @Router       /astrologers/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	a, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !a.IsActive && !auth.IsAdmin(c) {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: ErrAstrologerNotFound.Error()})
		return
	}
	c.JSON(http.StatusOK, a)
}

// GetMine godoc
// @Summary      Own astrologer profile
// @Tags         astrologers
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  Astrologer
// @Failure      404  {object}  api.ErrorResponse
// @Router       /astrologers/me [get]
func (h *Handler) GetMine(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}
	a, err := h.service.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// UpdateMine godoc
// @Summary      Update own astrologer profile
// @Tags         astrologers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      ProfileRequest  true  "Profile fields"
// @Success      200      {object}  Astrologer
// @Failure      400      {object}  api.ErrorResponse
// @Router       /astrologers/me [put]
func (h *Handler) UpdateMine(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}

	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.BindingError(err))
		return
	}

	a, err := h.service.UpdateProfile(c.Request.Context(), userID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// Create godoc
// @Summary      Create astrologer
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      UpsertRequest  true  "Astrologer"
// @Success      201      {object}  Astrologer
// @Failure      400      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /admin/astrologers [post]
func (h *Handler) Create(c *gin.Context) {
	var req UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.BindingError(err))
		return
	}

	a, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// Update godoc
// @Summary      Update astrologer
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      int            true  "Astrologer ID"
// @Param        request  body      UpsertRequest  true  "Astrologer"
// @Success      200      {object}  Astrologer
// @Failure      404      {object}  api.ErrorResponse
// @Router       /admin/astrologers/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.BindingError(err))
		return
	}

	a, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// Delete godoc
// @Summary      Deactivate astrologer
// @Description  Soft delete: the profile is hidden from listings, history is kept.
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      int  true  "Astrologer ID"
// @Success      200  {object}  api.MessageResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /admin/astrologers/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.service.Deactivate(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "astrologer deactivated"})
}

// Bookings godoc
// @Summary      Astrologer bookings
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        id      path      int  true   "Astrologer ID"
// @Param        limit   query     int  false  "Page size"
// @Param        offset  query     int  false  "Offset"
// @Success      200     {array}   SessionBooking
// @Failure      400     {object}  api.ErrorResponse
// @Failure      403     {object}  api.ErrorResponse
// @Router       /admin/astrologers/{id}/bookings [get]
func (h *Handler) Bookings(c *gin.Context) {
	id, ok := h.authorized(c)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "limit must be a non-negative integer"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "offset must be a non-negative integer"})
		return
	}

	bookings, err := h.service.Bookings(c.Request.Context(), id, limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// Earnings godoc
// @Summary      Astrologer earnings
// @Description  Paid and fulfilled booking amounts per day. Defaults to the last 30 days.
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        id    path      int     true   "Astrologer ID"
// @Param        from  query     string  false  "YYYY-MM-DD, inclusive"
// @Param        to    query     string  false  "YYYY-MM-DD, inclusive"
// @Success      200   {object}  EarningsReport
// @Failure      400   {object}  api.ErrorResponse
// @Router       /admin/astrologers/{id}/earnings [get]
func (h *Handler) Earnings(c *gin.Context) {
	id, ok := h.authorized(c)
	if !ok {
		return
	}

	today := h.now().UTC().Truncate(24 * time.Hour)
	to := today.Add(24 * time.Hour)
	from := to.AddDate(0, 0, -30)

	if v := c.Query("from"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "from must be YYYY-MM-DD"})
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "to must be YYYY-MM-DD"})
			return
		}
		to = t.Add(24 * time.Hour)
	}

	report, err := h.service.Earnings(c.Request.Context(), id, from, to)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// authorized lets admins through and astrologers only for their own profile.
func (h *Handler) authorized(c *gin.Context) (int, bool) {
	id, ok := pathID(c)
	if !ok {
		return 0, false
	}
	if auth.IsAdmin(c) {
		return id, true
	}

	userID, _ := auth.GetUserID(c)
	role, _ := auth.GetUserRole(c)
	if role == auth.RoleAstrologer {
		mine, err := h.service.GetByUserID(c.Request.Context(), userID)
		if err == nil && mine.ID == id {
			return id, true
		}
	}

	c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "access denied"})
	return 0, false
}

func pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid astrologer id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var verr *api.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: verr.Error()})
	case errors.Is(err, ErrAstrologerNotFound), errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrUserAlreadyLinked):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
	default:
		logger.WithError(err).Error("astrologer request failed", "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "internal error"})
	}
}
