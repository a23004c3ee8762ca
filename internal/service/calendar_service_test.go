package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlebunetel/toolbox-api/internal/models"
	appErrors "github.com/jlebunetel/toolbox-api/pkg/errors"
	"github.com/jlebunetel/toolbox-api/pkg/feeds"
)

type calendarRepoMock struct {
	calendars map[string]*models.Calendar
	families  map[string][]string
	finds     int
}

func newCalendarRepoMock() *calendarRepoMock {
	return &calendarRepoMock{
		calendars: make(map[string]*models.Calendar),
		families:  make(map[string][]string),
	}
}

func (m *calendarRepoMock) List(_ context.Context, filter models.CalendarFilter) ([]models.Calendar, int, error) {
	var out []models.Calendar
	for _, c := range m.calendars {
		if filter.CreatedBy != "" && c.CreatedBy != filter.CreatedBy {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *calendarRepoMock) ListAll(_ context.Context) ([]models.Calendar, error) {
	var out []models.Calendar
	for _, c := range m.calendars {
		copied := *c
		copied.FamilyIDs = m.families[c.ID]
		out = append(out, copied)
	}
	return out, nil
}

func (m *calendarRepoMock) FindByID(_ context.Context, id string) (*models.Calendar, error) {
	m.finds++
	c, ok := m.calendars[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *c
	copied.FamilyIDs = m.families[id]
	return &copied, nil
}

func (m *calendarRepoMock) Create(_ context.Context, calendar *models.Calendar) error {
	m.calendars[calendar.ID] = calendar
	return nil
}

func (m *calendarRepoMock) Update(_ context.Context, calendar *models.Calendar) error {
	m.calendars[calendar.ID] = calendar
	return nil
}

func (m *calendarRepoMock) Delete(_ context.Context, id string) error {
	delete(m.calendars, id)
	return nil
}

func (m *calendarRepoMock) SetFamilies(_ context.Context, calendarID string, familyIDs []string) error {
	m.families[calendarID] = familyIDs
	return nil
}

type peopleRepoMock struct {
	people []models.Person
}

func (m *peopleRepoMock) ListByFamilies(_ context.Context, familyIDs []string) ([]models.Person, error) {
	if len(familyIDs) == 0 {
		return nil, nil
	}
	return m.people, nil
}

type familiesRepoMock struct {
	families map[string]*models.Family
}

func (m *familiesRepoMock) ListByUser(_ context.Context, userID string) ([]models.Family, error) {
	var out []models.Family
	for _, f := range m.families {
		for _, id := range f.UserIDs {
			if id == userID {
				out = append(out, *f)
				break
			}
		}
	}
	return out, nil
}

func (m *familiesRepoMock) IsMember(_ context.Context, familyID, userID string) (bool, error) {
	f, ok := m.families[familyID]
	if !ok {
		return false, nil
	}
	for _, id := range f.UserIDs {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *familiesRepoMock) FindByID(_ context.Context, id string) (*models.Family, error) {
	f, ok := m.families[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *f
	return &copied, nil
}

type auditMock struct {
	logs []models.AuditLog
}

func (m *auditMock) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, *log)
	return nil
}

// svcLocalizer avoids wiring the message bundle into service tests.
type svcLocalizer struct{}

func (svcLocalizer) T(id string, data map[string]interface{}) string {
	switch id {
	case "BirthOf":
		return fmt.Sprintf("Birth of %v", data["Name"])
	case "DeathOf":
		return fmt.Sprintf("Death of %v", data["Name"])
	case "WasBornToday":
		return fmt.Sprintf("%v was born today.", data["Name"])
	case "DiedToday":
		return fmt.Sprintf("%v died today.", data["Name"])
	case "WasBornOn":
		return fmt.Sprintf("%v was born on %v,", data["Name"], data["Date"])
	case "DiedOn":
		return fmt.Sprintf("%v died on %v,", data["Name"], data["Date"])
	case "NewEvent":
		return "New event"
	case "ReminderGreeting":
		return fmt.Sprintf("Hello %v,", data["Name"])
	case "ReminderIntro":
		return fmt.Sprintf("Here are the birthdays coming up in %v:", data["Calendar"])
	case "ReminderOutro":
		return fmt.Sprintf("This reminder was sent by %v.", data["Site"])
	default:
		return id
	}
}

func (svcLocalizer) N(id string, count int) string {
	switch id {
	case "Years":
		if count == 1 {
			return "1 year"
		}
		return fmt.Sprintf("%d years", count)
	case "YearsAgo":
		if count == 1 {
			return "one year ago."
		}
		return fmt.Sprintf("%d years ago.", count)
	case "BirthdaysNextDays":
		return fmt.Sprintf("Birthdays in the next %d days", count)
	default:
		return id
	}
}

func (svcLocalizer) FormatDate(t time.Time) string {
	return t.Format("January 2, 2006")
}

func (svcLocalizer) Language() string { return "en" }

// memoryCacheRepo is a JSON-backed in-memory stand-in for Redis.
type memoryCacheRepo struct {
	store map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{store: make(map[string][]byte)}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := m.store[key]
	if !ok {
		return fmt.Errorf("key %s: %w", key, appErrors.ErrCacheMiss)
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.store[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.store {
		if strings.HasPrefix(key, prefix) {
			delete(m.store, key)
		}
	}
	return nil
}

func memberClaims(userID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: models.RoleMember}
}

func noCache() *CacheService {
	return NewCacheService(nil, nil, 0, nil, false)
}

func newCalendarServiceForTest(repo *calendarRepoMock, people *peopleRepoMock, families *familiesRepoMock, audit *auditMock, cache *CacheService) *CalendarService {
	if families == nil {
		families = &familiesRepoMock{families: map[string]*models.Family{}}
	}
	if audit == nil {
		audit = &auditMock{}
	}
	if cache == nil {
		cache = noCache()
	}
	signer := feeds.NewSigner("test_secret", time.Hour)
	svc := NewCalendarService(repo, people, families, audit, cache, nil, svcLocalizer{}, signer, CalendarConfig{
		SiteName: "toolbox",
		BaseURL:  "http://localhost:8080",
		Timezone: "UTC",
		Version:  "test",
		FeedTTL:  time.Hour,
	}, nil, nil)
	svc.now = func() time.Time { return time.Date(2023, time.June, 1, 10, 0, 0, 0, time.UTC) }
	return svc
}

func testPerson(id, name string, birth time.Time, death *time.Time) models.Person {
	return models.Person{
		ID:          id,
		FirstName:   name,
		DateOfBirth: &birth,
		DateOfDeath: death,
		Species:     models.SpeciesHuman,
	}
}

func TestCalendarServiceCreateDefaults(t *testing.T) {
	repo := newCalendarRepoMock()
	audit := &auditMock{}
	svc := newCalendarServiceForTest(repo, &peopleRepoMock{}, nil, audit, nil)

	calendar, err := svc.Create(context.Background(), memberClaims("u1"), CalendarRequest{}, models.LoginRequest{})
	require.NoError(t, err)

	assert.Equal(t, "🎂", calendar.Icon)
	assert.Equal(t, "My calendar", calendar.Title)
	assert.True(t, calendar.HideDeathAnniversaries)
	assert.Equal(t, 3, calendar.YearsAhead)
	assert.Equal(t, "u1", calendar.CreatedBy)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionCalendarWrite, audit.logs[0].Action)
}

func TestCalendarServiceGetRejectsStrangers(t *testing.T) {
	repo := newCalendarRepoMock()
	repo.calendars["c1"] = &models.Calendar{ID: "c1", Title: "Mine", Audited: models.Audited{CreatedBy: "owner"}}
	svc := newCalendarServiceForTest(repo, &peopleRepoMock{}, nil, nil, nil)

	_, err := svc.Get(context.Background(), memberClaims("stranger"), "c1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not accessible")

	calendar, err := svc.Get(context.Background(), memberClaims("owner"), "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", calendar.ID)
}

func TestCalendarServiceRenderFeedHidesDeathAnniversaries(t *testing.T) {
	death := time.Date(2010, time.March, 3, 0, 0, 0, 0, time.UTC)
	people := &peopleRepoMock{people: []models.Person{
		testPerson("p1", "Alice", time.Date(1990, time.June, 15, 0, 0, 0, 0, time.UTC), nil),
		testPerson("p2", "Bob", time.Date(1930, time.January, 2, 0, 0, 0, 0, time.UTC), &death),
	}}

	repo := newCalendarRepoMock()
	repo.calendars["c1"] = &models.Calendar{ID: "c1", Title: "Family", HideDeathAnniversaries: true, YearsAhead: 1, Audited: models.Audited{CreatedBy: "owner"}}
	repo.families["c1"] = []string{"f1"}
	svc := newCalendarServiceForTest(repo, people, nil, nil, nil)

	filename, payload, err := svc.RenderFeed(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, "family.ics", filename)
	feed := string(payload)
	assert.Contains(t, feed, "Birth of Alice")
	assert.Contains(t, feed, "Birth of Bob")
	assert.NotContains(t, feed, "Death of Bob")
	assert.NotContains(t, feed, "🪦")

	repo.calendars["c1"].HideDeathAnniversaries = false
	_, payload, err = svc.RenderFeed(context.Background(), "c1")
	require.NoError(t, err)
	assert.Contains(t, string(payload), "Death of Bob")
}

func TestCalendarServiceRenderFeedWindow(t *testing.T) {
	people := &peopleRepoMock{people: []models.Person{
		testPerson("p1", "Alice", time.Date(1990, time.June, 15, 0, 0, 0, 0, time.UTC), nil),
	}}

	repo := newCalendarRepoMock()
	repo.calendars["c1"] = &models.Calendar{ID: "c1", Title: "Family", HideDeathAnniversaries: true, YearsAhead: 2, Audited: models.Audited{CreatedBy: "owner"}}
	repo.families["c1"] = []string{"f1"}
	svc := newCalendarServiceForTest(repo, people, nil, nil, nil)

	// now is 2023-06-01, so the last recurrence lands in 2025.
	_, payload, err := svc.RenderFeed(context.Background(), "c1")
	require.NoError(t, err)

	feed := string(payload)
	assert.Contains(t, feed, "DTSTART;VALUE=DATE:20250615")
	assert.NotContains(t, feed, "DTSTART;VALUE=DATE:20260615")
}

func TestCalendarServiceRenderFeedCaches(t *testing.T) {
	people := &peopleRepoMock{people: []models.Person{
		testPerson("p1", "Alice", time.Date(1990, time.June, 15, 0, 0, 0, 0, time.UTC), nil),
	}}

	repo := newCalendarRepoMock()
	repo.calendars["c1"] = &models.Calendar{ID: "c1", Title: "Family", YearsAhead: 1, Audited: models.Audited{CreatedBy: "owner"}}
	repo.families["c1"] = []string{"f1"}

	cache := NewCacheService(newMemoryCacheRepo(), nil, time.Hour, nil, true)
	svc := newCalendarServiceForTest(repo, people, nil, nil, cache)

	_, first, err := svc.RenderFeed(context.Background(), "c1")
	require.NoError(t, err)
	_, second, err := svc.RenderFeed(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.finds)
}

func TestCalendarServiceUpcomingBirthdays(t *testing.T) {
	people := &peopleRepoMock{people: []models.Person{
		testPerson("p1", "Alice", time.Date(1990, time.June, 5, 0, 0, 0, 0, time.UTC), nil),
		testPerson("p2", "Bob", time.Date(1985, time.May, 30, 0, 0, 0, 0, time.UTC), nil),
		testPerson("p3", "Carol", time.Date(2000, time.July, 20, 0, 0, 0, 0, time.UTC), nil),
	}}

	repo := newCalendarRepoMock()
	repo.calendars["c1"] = &models.Calendar{ID: "c1", Title: "Family", YearsAhead: 3, Audited: models.Audited{CreatedBy: "owner"}}
	repo.families["c1"] = []string{"f1"}
	svc := newCalendarServiceForTest(repo, people, nil, nil, nil)

	// Window is (2023-06-01, 2023-06-08]: Alice matches, Bob already passed,
	// Carol is too far out.
	events, err := svc.UpcomingBirthdays(context.Background(), memberClaims("owner"), "c1", 7)
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, "p1", events[0].PersonID)
	assert.Equal(t, "Alice", events[0].Name)
	assert.Equal(t, 33, events[0].Years)
	assert.Equal(t, time.Date(2023, time.June, 5, 0, 0, 0, 0, time.UTC), events[0].Date)
}

func TestCalendarServiceExportUpcomingCSV(t *testing.T) {
	people := &peopleRepoMock{people: []models.Person{
		testPerson("p1", "Alice", time.Date(1990, time.June, 5, 0, 0, 0, 0, time.UTC), nil),
	}}

	repo := newCalendarRepoMock()
	repo.calendars["c1"] = &models.Calendar{ID: "c1", Title: "Family", YearsAhead: 3, Audited: models.Audited{CreatedBy: "owner"}}
	repo.families["c1"] = []string{"f1"}
	svc := newCalendarServiceForTest(repo, people, nil, nil, nil)

	contentType, payload, err := svc.ExportUpcoming(context.Background(), memberClaims("owner"), "c1", "csv", 7)
	require.NoError(t, err)

	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(payload), "Alice")
	assert.Contains(t, string(payload), "2023-06-05")

	_, _, err = svc.ExportUpcoming(context.Background(), memberClaims("owner"), "c1", "xml", 7)
	require.Error(t, err)
}

func TestCalendarServiceSignedFeed(t *testing.T) {
	people := &peopleRepoMock{people: []models.Person{
		testPerson("p1", "Alice", time.Date(1990, time.June, 15, 0, 0, 0, 0, time.UTC), nil),
	}}

	repo := newCalendarRepoMock()
	repo.calendars["c1"] = &models.Calendar{ID: "c1", Title: "Family", YearsAhead: 1, Audited: models.Audited{CreatedBy: "owner"}}
	repo.families["c1"] = []string{"f1"}
	svc := newCalendarServiceForTest(repo, people, nil, nil, nil)

	urls, err := svc.FeedURL(context.Background(), memberClaims("owner"), "c1")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api/v1/calendars/c1/family.ics", urls.DirectURL)
	assert.Contains(t, urls.SignedURL, "/api/v1/feeds/family.ics?token=")

	token := strings.SplitN(urls.SignedURL, "token=", 2)[1]
	payload, err := svc.ResolveSignedFeed(context.Background(), "family.ics", token)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "BEGIN:VCALENDAR")

	_, err = svc.ResolveSignedFeed(context.Background(), "other.ics", token)
	require.Error(t, err)

	_, err = svc.RenderFeedFile(context.Background(), "c1", "wrong.ics")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}
