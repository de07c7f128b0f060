package astrologer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) List(ctx context.Context, f ListFilter) ([]Astrologer, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Astrologer), args.Error(1)
}

func (m *MockService) Get(ctx context.Context, id int) (*Astrologer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Astrologer), args.Error(1)
}

func (m *MockService) GetByUserID(ctx context.Context, userID int) (*Astrologer, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Astrologer), args.Error(1)
}

func (m *MockService) Create(ctx context.Context, req UpsertRequest) (*Astrologer, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Astrologer), args.Error(1)
}

func (m *MockService) Update(ctx context.Context, id int, req UpsertRequest) (*Astrologer, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Astrologer), args.Error(1)
}

func (m *MockService) UpdateProfile(ctx context.Context, userID int, req ProfileRequest) (*Astrologer, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Astrologer), args.Error(1)
}

func (m *MockService) Deactivate(ctx context.Context, id int) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockService) Bookings(ctx context.Context, id, limit, offset int) ([]SessionBooking, error) {
	args := m.Called(ctx, id, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]SessionBooking), args.Error(1)
}

func (m *MockService) Earnings(ctx context.Context, id int, from, to time.Time) (*EarningsReport, error) {
	args := m.Called(ctx, id, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*EarningsReport), args.Error(1)
}

func setupRouter(svc Service, callerID int, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(svc)
	h.now = func() time.Time { return time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC) }

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if callerID > 0 {
			c.Set("user_id", callerID)
			c.Set("user_role", role)
		}
		c.Next()
	})
	r.GET("/astrologers", h.List)
	r.GET("/astrologers/me", h.GetMine)
	r.PUT("/astrologers/me", h.UpdateMine)
	r.GET("/astrologers/:id", h.Get)
	r.POST("/admin/astrologers", h.Create)
	r.PUT("/admin/astrologers/:id", h.Update)
	r.DELETE("/admin/astrologers/:id", h.Delete)
	r.GET("/admin/astrologers/:id/bookings", h.Bookings)
	r.GET("/admin/astrologers/:id/earnings", h.Earnings)
	return r
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_ListPassesFilters(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc, 0, "")

	svc.On("List", mock.Anything, ListFilter{Specialty: "vedic", Language: "hindi", Sort: "price", Limit: 5}).
		Return([]Astrologer{{ID: 1, Name: "Ravi", IsActive: true}}, nil)

	w := doJSON(r, http.MethodGet, "/astrologers?specialty=vedic&language=hindi&sort=price&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list []Astrologer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestHandler_ListBadLimit(t *testing.T) {
	r := setupRouter(new(MockService), 0, "")
	w := doJSON(r, http.MethodGet, "/astrologers?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_GetHidesInactive(t *testing.T) {
	svc := new(MockService)
	svc.On("Get", mock.Anything, 2).Return(&Astrologer{ID: 2, IsActive: false}, nil)

	w := doJSON(setupRouter(svc, 0, ""), http.MethodGet, "/astrologers/2", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(setupRouter(svc, 1, "admin"), http.MethodGet, "/astrologers/2", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandler_CreateValidation(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc, 1, "admin")

	w := doJSON(r, http.MethodPost, "/admin/astrologers", map[string]any{
		"name":     "Meera",
		"services": []map[string]any{{"name": "Tarot", "duration_minutes": 0, "price": 100}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/admin/astrologers", map[string]any{
		"name":         "Meera",
		"availability": []map[string]any{{"day": "funday", "start": "10:00", "end": "11:00"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Create")
}

func TestHandler_CreateConflict(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc, 1, "admin")
	svc.On("Create", mock.Anything, mock.Anything).Return(nil, ErrUserAlreadyLinked)

	w := doJSON(r, http.MethodPost, "/admin/astrologers", map[string]any{"name": "Meera", "user_id": 5})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandler_Delete(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc, 1, "admin")
	svc.On("Deactivate", mock.Anything, 3).Return(nil)
	svc.On("Deactivate", mock.Anything, 4).Return(ErrAstrologerNotFound)

	assert.Equal(t, http.StatusOK, doJSON(r, http.MethodDelete, "/admin/astrologers/3", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodDelete, "/admin/astrologers/4", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodDelete, "/admin/astrologers/x", nil).Code)
}

func TestHandler_EarningsDefaultsToLast30Days(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc, 1, "admin")

	to := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	from := to.AddDate(0, 0, -30)
	svc.On("Earnings", mock.Anything, 3, from, to).Return(&EarningsReport{AstrologerID: 3}, nil)

	w := doJSON(r, http.MethodGet, "/admin/astrologers/3/earnings", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestHandler_EarningsExplicitRange(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc, 1, "admin")

	from := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	svc.On("Earnings", mock.Anything, 3, from, to).Return(&EarningsReport{AstrologerID: 3}, nil)

	w := doJSON(r, http.MethodGet, "/admin/astrologers/3/earnings?from=2026-02-01&to=2026-02-28", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/admin/astrologers/3/earnings?from=01-02-2026", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_AstrologerSeesOnlyOwnBookings(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc, 5, "astrologer")

	svc.On("GetByUserID", mock.Anything, 5).Return(&Astrologer{ID: 3}, nil)
	svc.On("Bookings", mock.Anything, 3, 0, 0).Return([]SessionBooking{{ID: 1, Title: "Kundli reading"}}, nil)

	w := doJSON(r, http.MethodGet, "/admin/astrologers/3/bookings", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/admin/astrologers/4/bookings", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestHandler_BookingsRejectsBadPaging(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc, 1, "admin")

	for _, q := range []string{"offset=-5", "offset=abc", "limit=-1", "limit=ten"} {
		w := doJSON(r, http.MethodGet, "/admin/astrologers/3/bookings?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
	svc.AssertNotCalled(t, "Bookings")
}

func TestHandler_UserCannotSeeBookings(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc, 9, "user")

	w := doJSON(r, http.MethodGet, "/admin/astrologers/3/bookings", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	svc.AssertNotCalled(t, "Bookings")
}

func TestHandler_UpdateMine(t *testing.T) {
	svc := new(MockService)
	r := setupRouter(svc, 5, "astrologer")

	bio := "Twenty years of practice"
	svc.On("UpdateProfile", mock.Anything, 5, ProfileRequest{Bio: &bio}).
		Return(&Astrologer{ID: 3, Bio: bio}, nil)

	w := doJSON(r, http.MethodPut, "/astrologers/me", map[string]any{"bio": bio})
	require.Equal(t, http.StatusOK, w.Code)

	var a Astrologer
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &a))
	assert.Equal(t, bio, a.Bio)
}
