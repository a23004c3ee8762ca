package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jlebunetel/toolbox-api/internal/models"
)

var calendarColumns = fmt.Sprintf(`c.id, c.icon, c.title, c.hide_death_anniversaries, c.years_ahead, COALESCE(c.created_by, '%[1]s') AS created_by, c.created_at, COALESCE(c.changed_by, '%[1]s') AS changed_by, c.changed_at`, models.SentinelUsername)

// CalendarRepository manages persistence for anniversary calendars.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository constructs a CalendarRepository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

// List returns calendars matching the provided filters.
func (r *CalendarRepository) List(ctx context.Context, filter models.CalendarFilter) ([]models.Calendar, int, error) {
	base := "FROM calendars c WHERE 1=1"
	var args []interface{}

	if filter.CreatedBy != "" {
		base += fmt.Sprintf(" AND c.created_by = $%d", len(args)+1)
		args = append(args, filter.CreatedBy)
	}
	if filter.Search != "" {
		base += fmt.Sprintf(" AND LOWER(c.title) LIKE $%d", len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY c.title ASC LIMIT %d OFFSET %d", calendarColumns, base, size, offset)

	var calendars []models.Calendar
	if err := r.db.SelectContext(ctx, &calendars, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list calendars: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count calendars: %w", err)
	}
	return calendars, total, nil
}

// ListAll returns every calendar, family links included. The reminder digest
// walks this list once a day.
func (r *CalendarRepository) ListAll(ctx context.Context) ([]models.Calendar, error) {
	query := fmt.Sprintf("SELECT %s FROM calendars c ORDER BY c.title ASC", calendarColumns)
	var calendars []models.Calendar
	if err := r.db.SelectContext(ctx, &calendars, query); err != nil {
		return nil, fmt.Errorf("list all calendars: %w", err)
	}
	for i := range calendars {
		familyIDs, err := r.familyIDs(ctx, calendars[i].ID)
		if err != nil {
			return nil, err
		}
		calendars[i].FamilyIDs = familyIDs
	}
	return calendars, nil
}

// FindByID fetches a calendar by ID, family links included.
func (r *CalendarRepository) FindByID(ctx context.Context, id string) (*models.Calendar, error) {
	query := fmt.Sprintf("SELECT %s FROM calendars c WHERE c.id = $1", calendarColumns)
	var calendar models.Calendar
	if err := r.db.GetContext(ctx, &calendar, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find calendar by id: %w", err)
	}

	familyIDs, err := r.familyIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	calendar.FamilyIDs = familyIDs
	return &calendar, nil
}

func (r *CalendarRepository) familyIDs(ctx context.Context, calendarID string) ([]string, error) {
	const query = `SELECT family_id FROM calendar_families WHERE calendar_id = $1 ORDER BY family_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, calendarID); err != nil {
		return nil, fmt.Errorf("load calendar families: %w", err)
	}
	return ids, nil
}

// Create inserts a new calendar record.
func (r *CalendarRepository) Create(ctx context.Context, calendar *models.Calendar) error {
	if calendar.ID == "" {
		calendar.ID = uuid.NewString()
	}
	const query = `INSERT INTO calendars (id, icon, title, hide_death_anniversaries, years_ahead, created_by, created_at, changed_by, changed_at)
        VALUES (:id, :icon, :title, :hide_death_anniversaries, :years_ahead, :created_by, :created_at, :changed_by, :changed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, calendar); err != nil {
		return fmt.Errorf("create calendar: %w", err)
	}
	return nil
}

// Update modifies an existing calendar.
func (r *CalendarRepository) Update(ctx context.Context, calendar *models.Calendar) error {
	const query = `UPDATE calendars SET icon = :icon, title = :title, hide_death_anniversaries = :hide_death_anniversaries, years_ahead = :years_ahead, changed_by = :changed_by, changed_at = :changed_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, calendar); err != nil {
		return fmt.Errorf("update calendar: %w", err)
	}
	return nil
}

// Delete removes a calendar. Family links go with it via cascade.
func (r *CalendarRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM calendars WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete calendar: %w", err)
	}
	return nil
}

// SetFamilies replaces the calendar's family links.
func (r *CalendarRepository) SetFamilies(ctx context.Context, calendarID string, familyIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set families: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM calendar_families WHERE calendar_id = $1`, calendarID); err != nil {
		return fmt.Errorf("clear calendar families: %w", err)
	}
	for _, familyID := range familyIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO calendar_families (calendar_id, family_id) VALUES ($1, $2)`, calendarID, familyID); err != nil {
			return fmt.Errorf("link calendar to family %s: %w", familyID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set families: %w", err)
	}
	return nil
}
