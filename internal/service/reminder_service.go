package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jlebunetel/toolbox-api/internal/anniversary"
	"github.com/jlebunetel/toolbox-api/internal/mailer"
	"github.com/jlebunetel/toolbox-api/internal/models"
	appErrors "github.com/jlebunetel/toolbox-api/pkg/errors"
)

type reminderUserRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
}

type reminderCalendarRepository interface {
	ListAll(ctx context.Context) ([]models.Calendar, error)
}

// ReminderConfig governs the periodic birthday digest.
type ReminderConfig struct {
	SiteName  string
	DaysAhead int
}

// ReminderService assembles and sends the upcoming-birthday email digest.
// One email goes out per calendar with matches, addressed to its creator.
type ReminderService struct {
	users     reminderUserRepository
	calendars reminderCalendarRepository
	feeds     *CalendarService
	sender    mailer.Sender
	metrics   *MetricsService
	localizer anniversary.Localizer
	config    ReminderConfig
	logger    *zap.Logger
}

// NewReminderService creates an instance of ReminderService.
func NewReminderService(users reminderUserRepository, calendars reminderCalendarRepository, feeds *CalendarService, sender mailer.Sender, metrics *MetricsService, localizer anniversary.Localizer, config ReminderConfig, logger *zap.Logger) *ReminderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.DaysAhead <= 0 {
		config.DaysAhead = 7
	}
	return &ReminderService{
		users:     users,
		calendars: calendars,
		feeds:     feeds,
		sender:    sender,
		metrics:   metrics,
		localizer: localizer,
		config:    config,
		logger:    logger,
	}
}

// SendDigest walks every active user's calendars and mails a digest for each
// calendar that has birthdays inside the window. Individual delivery failures
// are logged and counted; the run only errors when nothing could be sent at
// all.
func (s *ReminderService) SendDigest(ctx context.Context) error {
	recipients, err := s.activeUsers(ctx)
	if err != nil {
		return err
	}

	calendars, err := s.calendars.ListAll(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list calendars")
	}
	byCreator := make(map[string][]models.Calendar)
	for _, calendar := range calendars {
		byCreator[calendar.CreatedBy] = append(byCreator[calendar.CreatedBy], calendar)
	}

	var attempted, sent int
	for _, user := range recipients {
		for _, calendar := range byCreator[user.ID] {
			events, err := s.feeds.upcoming(ctx, &calendar, s.config.DaysAhead)
			if err != nil {
				s.logger.Warn("failed to compute upcoming birthdays",
					zap.String("calendar_id", calendar.ID), zap.Error(err))
				continue
			}
			if len(events) == 0 {
				continue
			}

			attempted++
			if err := s.sendOne(ctx, user, calendar, events); err != nil {
				s.metrics.RecordReminderEmail(false)
				s.logger.Warn("failed to send reminder email",
					zap.String("user_id", user.ID),
					zap.String("calendar_id", calendar.ID),
					zap.Error(err))
				continue
			}
			s.metrics.RecordReminderEmail(true)
			sent++
		}
	}

	s.logger.Info("reminder digest run finished",
		zap.Int("recipients", len(recipients)),
		zap.Int("attempted", attempted),
		zap.Int("sent", sent))

	if attempted > 0 && sent == 0 {
		return appErrors.Clone(appErrors.ErrDelivery, "all reminder emails failed")
	}
	return nil
}

func (s *ReminderService) sendOne(ctx context.Context, user models.User, calendar models.Calendar, events []UpcomingEvent) error {
	subject := fmt.Sprintf("[%s] 🎂 %s (%s)",
		s.config.SiteName,
		s.localizer.N("BirthdaysNextDays", s.config.DaysAhead),
		calendar.DisplayString())

	rows := make([]mailer.DigestRow, 0, len(events))
	for _, event := range events {
		rows = append(rows, mailer.DigestRow{
			Name:    event.Name,
			Date:    s.localizer.FormatDate(event.Date),
			Summary: event.Summary,
		})
	}

	text, html, err := mailer.RenderDigest(mailer.DigestData{
		Greeting: s.localizer.T("ReminderGreeting", map[string]interface{}{"Name": user.DisplayString()}),
		Intro:    s.localizer.T("ReminderIntro", map[string]interface{}{"Calendar": calendar.DisplayString()}),
		Calendar: calendar.DisplayString(),
		Rows:     rows,
		Outro:    s.localizer.T("ReminderOutro", map[string]interface{}{"Site": s.config.SiteName}),
		SiteName: s.config.SiteName,
	})
	if err != nil {
		return fmt.Errorf("render digest: %w", err)
	}

	return s.sender.Send(ctx, mailer.Message{
		To:      user.Email,
		Subject: subject,
		Text:    text,
		HTML:    html,
	})
}

func (s *ReminderService) activeUsers(ctx context.Context) ([]models.User, error) {
	active := true
	var users []models.User
	for page := 1; ; page++ {
		batch, total, err := s.users.List(ctx, models.UserFilter{Active: &active, Page: page, PageSize: 100})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
		}
		for _, user := range batch {
			if user.Email != "" {
				users = append(users, user)
			}
		}
		if len(batch) == 0 || len(users) >= total || page*100 >= total {
			break
		}
	}
	return users, nil
}
