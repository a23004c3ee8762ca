package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jlebunetel/toolbox-api/internal/anniversary"
	"github.com/jlebunetel/toolbox-api/internal/models"
	appErrors "github.com/jlebunetel/toolbox-api/pkg/errors"
	"github.com/jlebunetel/toolbox-api/pkg/export"
	"github.com/jlebunetel/toolbox-api/pkg/feeds"
)

type calendarRepository interface {
	List(ctx context.Context, filter models.CalendarFilter) ([]models.Calendar, int, error)
	ListAll(ctx context.Context) ([]models.Calendar, error)
	FindByID(ctx context.Context, id string) (*models.Calendar, error)
	Create(ctx context.Context, calendar *models.Calendar) error
	Update(ctx context.Context, calendar *models.Calendar) error
	Delete(ctx context.Context, id string) error
	SetFamilies(ctx context.Context, calendarID string, familyIDs []string) error
}

type calendarPersonRepository interface {
	ListByFamilies(ctx context.Context, familyIDs []string) ([]models.Person, error)
}

// DefaultCalendarIcon and DefaultCalendarTitle fill absent fields on create.
const (
	DefaultCalendarIcon  = "🎂"
	DefaultCalendarTitle = "My calendar"
)

// CalendarRequest represents the payload for creating or updating a calendar.
type CalendarRequest struct {
	Icon                   string   `json:"icon"`
	Title                  string   `json:"title"`
	HideDeathAnniversaries *bool    `json:"hide_death_anniversaries"`
	YearsAhead             *int     `json:"years_ahead" validate:"omitempty,gte=0"`
	FamilyIDs              []string `json:"family_ids"`
}

// FeedURLResponse carries the shareable links for a calendar feed.
type FeedURLResponse struct {
	DirectURL string    `json:"direct_url"`
	SignedURL string    `json:"signed_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UpcomingEvent is a dashboard row for an upcoming birthday.
type UpcomingEvent struct {
	PersonID string    `json:"person_id"`
	Name     string    `json:"name"`
	Date     time.Time `json:"date"`
	Years    int       `json:"years"`
	Summary  string    `json:"summary"`
}

// CalendarConfig carries site-level settings the feed document embeds.
type CalendarConfig struct {
	SiteName string
	BaseURL  string
	Language string
	Timezone string
	Version  string
	FeedTTL  time.Duration
}

// cachedFeed is the payload stored in Redis for a rendered calendar.
type cachedFeed struct {
	Filename string `json:"filename"`
	Payload  []byte `json:"payload"`
}

// CalendarService handles calendar management and feed generation.
type CalendarService struct {
	repo      calendarRepository
	people    calendarPersonRepository
	families  personFamilyRepository
	audit     auditRecorder
	cache     *CacheService
	metrics   *MetricsService
	localizer anniversary.Localizer
	signer    *feeds.Signer
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	config    CalendarConfig
	validator *validator.Validate
	logger    *zap.Logger

	// now is injectable for deterministic feed tests.
	now func() time.Time
}

// NewCalendarService creates an instance of CalendarService.
func NewCalendarService(repo calendarRepository, people calendarPersonRepository, families personFamilyRepository, audit auditRecorder, cache *CacheService, metrics *MetricsService, localizer anniversary.Localizer, signer *feeds.Signer, config CalendarConfig, validate *validator.Validate, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CalendarService{
		repo:      repo,
		people:    people,
		families:  families,
		audit:     audit,
		cache:     cache,
		metrics:   metrics,
		localizer: localizer,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		config:    config,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns calendars the actor may see, paginated.
func (s *CalendarService) List(ctx context.Context, claims *models.JWTClaims, filter models.CalendarFilter) ([]models.Calendar, *models.Pagination, error) {
	if !isSuperAdmin(claims.Role) {
		filter.CreatedBy = claims.UserID
	}
	calendars, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list calendars")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return calendars, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a calendar by ID when the actor may see it.
func (s *CalendarService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Calendar, error) {
	calendar, err := s.loadCalendar(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccessCalendar(claims, calendar) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "calendar is not accessible")
	}
	return calendar, nil
}

// Create adds a new calendar.
func (s *CalendarService) Create(ctx context.Context, claims *models.JWTClaims, req CalendarRequest, meta models.LoginRequest) (*models.Calendar, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid calendar payload")
	}
	if err := s.requireFamiliesAccess(ctx, claims, req.FamilyIDs); err != nil {
		return nil, err
	}

	icon := req.Icon
	if icon == "" {
		icon = DefaultCalendarIcon
	}
	title := req.Title
	if title == "" {
		title = DefaultCalendarTitle
	}
	hideDeaths := true
	if req.HideDeathAnniversaries != nil {
		hideDeaths = *req.HideDeathAnniversaries
	}
	yearsAhead := models.DefaultYearsAhead
	if req.YearsAhead != nil {
		yearsAhead = *req.YearsAhead
	}

	now := time.Now().UTC()
	calendar := &models.Calendar{
		ID:                     uuid.NewString(),
		Icon:                   icon,
		Title:                  title,
		HideDeathAnniversaries: hideDeaths,
		YearsAhead:             yearsAhead,
		Audited: models.Audited{
			CreatedBy: claims.UserID,
			CreatedAt: now,
			ChangedBy: claims.UserID,
			ChangedAt: now,
		},
	}

	if err := s.repo.Create(ctx, calendar); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create calendar")
	}
	if len(req.FamilyIDs) > 0 {
		if err := s.repo.SetFamilies(ctx, calendar.ID, req.FamilyIDs); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link calendar families")
		}
		calendar.FamilyIDs = req.FamilyIDs
	}

	s.recordWrite(ctx, claims, calendar.ID, nil, calendar, meta)
	s.invalidateFeed(ctx, calendar.ID)
	return calendar, nil
}

// Update modifies an existing calendar.
func (s *CalendarService) Update(ctx context.Context, claims *models.JWTClaims, id string, req CalendarRequest, meta models.LoginRequest) (*models.Calendar, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid calendar payload")
	}

	calendar, err := s.loadCalendar(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccessCalendar(claims, calendar) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "calendar is not accessible")
	}
	if err := s.requireFamiliesAccess(ctx, claims, req.FamilyIDs); err != nil {
		return nil, err
	}

	old := *calendar

	if req.Icon != "" {
		calendar.Icon = req.Icon
	}
	if req.Title != "" {
		calendar.Title = req.Title
	}
	if req.HideDeathAnniversaries != nil {
		calendar.HideDeathAnniversaries = *req.HideDeathAnniversaries
	}
	if req.YearsAhead != nil {
		calendar.YearsAhead = *req.YearsAhead
	}
	calendar.ChangedBy = claims.UserID
	calendar.ChangedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, calendar); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update calendar")
	}
	if req.FamilyIDs != nil {
		if err := s.repo.SetFamilies(ctx, calendar.ID, req.FamilyIDs); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update calendar families")
		}
		calendar.FamilyIDs = req.FamilyIDs
	}

	s.recordWrite(ctx, claims, calendar.ID, &old, calendar, meta)
	s.invalidateFeed(ctx, calendar.ID)
	return calendar, nil
}

// Delete removes a calendar.
func (s *CalendarService) Delete(ctx context.Context, claims *models.JWTClaims, id string, meta models.LoginRequest) error {
	calendar, err := s.loadCalendar(ctx, id)
	if err != nil {
		return err
	}
	if !canAccessCalendar(claims, calendar) {
		return appErrors.Clone(appErrors.ErrForbidden, "calendar is not accessible")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete calendar")
	}

	s.recordWrite(ctx, claims, id, calendar, nil, meta)
	s.invalidateFeed(ctx, id)
	return nil
}

// RenderFeed builds the iCalendar document for a calendar. It is the backing
// of the public feed endpoints, so it takes no actor: whoever holds the link
// may read the feed.
func (s *CalendarService) RenderFeed(ctx context.Context, calendarID string) (string, []byte, error) {
	cacheKey := "feed:" + calendarID
	var cached cachedFeed
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return cached.Filename, cached.Payload, nil
	}

	calendar, err := s.loadCalendar(ctx, calendarID)
	if err != nil {
		return "", nil, err
	}

	events, err := s.calendarEvents(ctx, calendar)
	if err != nil {
		return "", nil, err
	}

	start := time.Now()
	payload, err := anniversary.RenderFeed(s.feedInfo(calendar), events, s.now())
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render feed")
	}
	s.metrics.ObserveFeedRender(time.Since(start))

	filename := calendar.FeedFilename()
	if err := s.cache.Set(ctx, cacheKey, cachedFeed{Filename: filename, Payload: payload}, s.config.FeedTTL); err != nil {
		s.logger.Warn("failed to cache feed", zap.String("calendar_id", calendarID), zap.Error(err))
	}
	return filename, payload, nil
}

// RenderFeedFile serves the feed only under its canonical filename.
func (s *CalendarService) RenderFeedFile(ctx context.Context, calendarID, filename string) ([]byte, error) {
	canonical, payload, err := s.RenderFeed(ctx, calendarID)
	if err != nil {
		return nil, err
	}
	if filename != canonical {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "feed not found")
	}
	return payload, nil
}

// UpcomingBirthdays lists birth occurrences within the window (today, today+days].
// Results stay grouped by person in listing order.
func (s *CalendarService) UpcomingBirthdays(ctx context.Context, claims *models.JWTClaims, calendarID string, days int) ([]UpcomingEvent, error) {
	calendar, err := s.Get(ctx, claims, calendarID)
	if err != nil {
		return nil, err
	}
	if days <= 0 {
		days = 7
	}
	return s.upcoming(ctx, calendar, days)
}

func (s *CalendarService) upcoming(ctx context.Context, calendar *models.Calendar, days int) ([]UpcomingEvent, error) {
	people, err := s.people.ListByFamilies(ctx, calendar.FamilyIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar people")
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	boundary := today.AddDate(0, 0, days)

	var upcoming []UpcomingEvent
	for _, person := range people {
		subject := person.AnniversarySubject()
		for _, event := range anniversary.BirthEvents(subject, boundary, s.localizer) {
			if !event.Date.After(today) {
				continue
			}
			upcoming = append(upcoming, UpcomingEvent{
				PersonID: person.ID,
				Name:     person.FullName(),
				Date:     event.Date,
				Years:    event.Index,
				Summary:  event.Summary,
			})
		}
	}
	return upcoming, nil
}

// ExportUpcoming renders the upcoming-birthday table as CSV or PDF.
func (s *CalendarService) ExportUpcoming(ctx context.Context, claims *models.JWTClaims, calendarID, format string, days int) (string, []byte, error) {
	calendar, err := s.Get(ctx, claims, calendarID)
	if err != nil {
		return "", nil, err
	}
	if days <= 0 {
		days = 7
	}
	events, err := s.upcoming(ctx, calendar, days)
	if err != nil {
		return "", nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"Name", "Date", "Years"},
	}
	for _, event := range events {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Name":  event.Name,
			"Date":  event.Date.Format("2006-01-02"),
			"Years": strconv.Itoa(event.Years),
		})
	}

	switch format {
	case "csv", "":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return "text/csv", payload, nil
	case "pdf":
		payload, err := s.pdf.Render(dataset, calendar.Title)
		if err != nil {
			return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return "application/pdf", payload, nil
	default:
		return "", nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}

// FeedURL returns the shareable links for the calendar's feed.
func (s *CalendarService) FeedURL(ctx context.Context, claims *models.JWTClaims, calendarID string) (*FeedURLResponse, error) {
	calendar, err := s.Get(ctx, claims, calendarID)
	if err != nil {
		return nil, err
	}

	filename := calendar.FeedFilename()
	token, expiresAt, err := s.signer.Generate(calendar.ID, filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign feed url")
	}

	return &FeedURLResponse{
		DirectURL: fmt.Sprintf("%s/api/v1/calendars/%s/%s", s.config.BaseURL, calendar.ID, filename),
		SignedURL: fmt.Sprintf("%s/api/v1/feeds/%s?token=%s", s.config.BaseURL, filename, token),
		ExpiresAt: expiresAt,
	}, nil
}

// ResolveSignedFeed validates a signed token and renders the matching feed.
func (s *CalendarService) ResolveSignedFeed(ctx context.Context, filename, token string) ([]byte, error) {
	calendarID, tokenFilename, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid feed token")
	}
	if tokenFilename != filename {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token does not match feed")
	}
	return s.RenderFeedFile(ctx, calendarID, filename)
}

func (s *CalendarService) calendarEvents(ctx context.Context, calendar *models.Calendar) ([]anniversary.Event, error) {
	people, err := s.people.ListByFamilies(ctx, calendar.FamilyIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar people")
	}

	// End of the advertised window: December 31 of currentYear + yearsAhead.
	end := time.Date(s.now().Year()+calendar.YearsAhead, time.December, 31, 0, 0, 0, 0, time.UTC)

	var events []anniversary.Event
	for _, person := range people {
		subject := person.AnniversarySubject()
		events = append(events, anniversary.BirthEvents(subject, end, s.localizer)...)
		if !calendar.HideDeathAnniversaries {
			events = append(events, anniversary.DeathEvents(subject, end, s.localizer)...)
		}
	}
	return events, nil
}

func (s *CalendarService) feedInfo(calendar *models.Calendar) anniversary.FeedInfo {
	return anniversary.FeedInfo{
		Title:         calendar.DisplayString(),
		Description:   calendar.DisplayString(),
		AppName:       s.config.SiteName,
		Version:       s.config.Version,
		Language:      s.localizer.Language(),
		Timezone:      s.config.Timezone,
		UntitledLabel: s.localizer.T("NewEvent", nil),
	}
}

func (s *CalendarService) requireFamiliesAccess(ctx context.Context, claims *models.JWTClaims, familyIDs []string) error {
	if isSuperAdmin(claims.Role) {
		return nil
	}
	for _, familyID := range familyIDs {
		family, err := s.families.FindByID(ctx, familyID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "family not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load family")
		}
		if !canAccessFamily(claims, family) {
			return appErrors.Clone(appErrors.ErrForbidden, "family is not accessible")
		}
	}
	return nil
}

func (s *CalendarService) loadCalendar(ctx context.Context, id string) (*models.Calendar, error) {
	calendar, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "calendar not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar")
	}
	return calendar, nil
}

func (s *CalendarService) recordWrite(ctx context.Context, claims *models.JWTClaims, calendarID string, before, after *models.Calendar, meta models.LoginRequest) {
	var oldPayload, newPayload []byte
	if before != nil {
		oldPayload, _ = json.Marshal(map[string]interface{}{"title": before.Title, "hide_death_anniversaries": before.HideDeathAnniversaries, "years_ahead": before.YearsAhead})
	}
	if after != nil {
		newPayload, _ = json.Marshal(map[string]interface{}{"title": after.Title, "hide_death_anniversaries": after.HideDeathAnniversaries, "years_ahead": after.YearsAhead})
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionCalendarWrite,
		Resource:   "calendars",
		ResourceID: &calendarID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record calendar audit log", zap.Error(err))
	}
}

func (s *CalendarService) invalidateFeed(ctx context.Context, calendarID string) {
	if err := s.cache.Invalidate(ctx, "feed:"+calendarID); err != nil {
		s.logger.Warn("failed to invalidate feed cache", zap.String("calendar_id", calendarID), zap.Error(err))
	}
}
