package handler

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlebunetel/toolbox-api/internal/i18n"
	"github.com/jlebunetel/toolbox-api/internal/models"
	"github.com/jlebunetel/toolbox-api/internal/service"
	"github.com/jlebunetel/toolbox-api/pkg/feeds"
)

type feedCalendarRepoMock struct {
	calendar *models.Calendar
}

func (m *feedCalendarRepoMock) List(context.Context, models.CalendarFilter) ([]models.Calendar, int, error) {
	return []models.Calendar{*m.calendar}, 1, nil
}

func (m *feedCalendarRepoMock) ListAll(context.Context) ([]models.Calendar, error) {
	return []models.Calendar{*m.calendar}, nil
}

func (m *feedCalendarRepoMock) FindByID(_ context.Context, id string) (*models.Calendar, error) {
	if m.calendar == nil || m.calendar.ID != id {
		return nil, sql.ErrNoRows
	}
	copied := *m.calendar
	return &copied, nil
}

func (m *feedCalendarRepoMock) Create(context.Context, *models.Calendar) error { return nil }
func (m *feedCalendarRepoMock) Update(context.Context, *models.Calendar) error { return nil }
func (m *feedCalendarRepoMock) Delete(context.Context, string) error           { return nil }
func (m *feedCalendarRepoMock) SetFamilies(context.Context, string, []string) error {
	return nil
}

type feedPeopleRepoMock struct {
	people []models.Person
}

func (m *feedPeopleRepoMock) ListByFamilies(context.Context, []string) ([]models.Person, error) {
	return m.people, nil
}

type feedFamiliesRepoMock struct{}

func (feedFamiliesRepoMock) ListByUser(context.Context, string) ([]models.Family, error) {
	return nil, nil
}
func (feedFamiliesRepoMock) IsMember(context.Context, string, string) (bool, error) {
	return false, nil
}
func (feedFamiliesRepoMock) FindByID(context.Context, string) (*models.Family, error) {
	return nil, sql.ErrNoRows
}

type feedAuditMock struct{}

func (feedAuditMock) CreateAuditLog(context.Context, *models.AuditLog) error { return nil }

func newFeedFixture(t *testing.T) (*FeedHandler, *service.CalendarService) {
	t.Helper()

	birth := time.Date(1990, time.June, 15, 0, 0, 0, 0, time.UTC)
	repo := &feedCalendarRepoMock{calendar: &models.Calendar{
		ID:         "c1",
		Icon:       "🎂",
		Title:      "Family",
		YearsAhead: 1,
		FamilyIDs:  []string{"f1"},
		Audited:    models.Audited{CreatedBy: "owner"},
	}}
	people := &feedPeopleRepoMock{people: []models.Person{{
		ID:          "p1",
		FirstName:   "Alice",
		DateOfBirth: &birth,
		Species:     models.SpeciesHuman,
	}}}

	bundle, err := i18n.NewBundle()
	require.NoError(t, err)
	localizer := i18n.NewLocalizer(bundle, "en")

	svc := service.NewCalendarService(repo, people, feedFamiliesRepoMock{}, feedAuditMock{}, service.NewCacheService(nil, nil, 0, nil, false), nil, localizer, feeds.NewSigner("test_secret", time.Hour), service.CalendarConfig{
		SiteName: "toolbox",
		BaseURL:  "http://localhost:8080",
		Timezone: "UTC",
		Version:  "test",
	}, nil, nil)
	return NewFeedHandler(svc), svc
}

func TestFeedHandlerDirect(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newFeedFixture(t)

	router := gin.New()
	router.GET("/api/v1/calendars/:id/:filename", handler.Direct)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/calendars/c1/family.ics", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "family.ics")
	assert.Contains(t, w.Body.String(), "BEGIN:VCALENDAR")
	assert.Contains(t, w.Body.String(), "🎉 Birth of Alice")
}

func TestFeedHandlerDirectWrongFilename(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newFeedFixture(t)

	router := gin.New()
	router.GET("/api/v1/calendars/:id/:filename", handler.Direct)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/calendars/c1/other.ics", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestFeedHandlerSigned(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, svc := newFeedFixture(t)

	claims := &models.JWTClaims{UserID: "owner", Role: models.RoleMember}
	urls, err := svc.FeedURL(context.Background(), claims, "c1")
	require.NoError(t, err)

	router := gin.New()
	router.GET("/api/v1/feeds/:filename", handler.Signed)

	path := urls.SignedURL[len("http://localhost:8080"):]
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "BEGIN:VCALENDAR")
}

func TestFeedHandlerSignedMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newFeedFixture(t)

	router := gin.New()
	router.GET("/api/v1/feeds/:filename", handler.Signed)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/feeds/family.ics", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
