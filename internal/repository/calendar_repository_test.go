package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlebunetel/toolbox-api/internal/models"
)

func calendarRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "icon", "title", "hide_death_anniversaries", "years_ahead", "created_by", "created_at", "changed_by", "changed_at"})
}

func TestCalendarRepositoryListFiltersByCreator(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCalendarRepository(db)

	rows := calendarRows().
		AddRow("c1", "📅", "Martin family", false, 3, "u1", time.Now(), "u1", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM calendars c WHERE 1=1 AND c.created_by = $1 ORDER BY c.title ASC LIMIT 20 OFFSET 0")).
		WithArgs("u1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM calendars c WHERE 1=1 AND c.created_by = $1")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	calendars, total, err := repo.List(context.Background(), models.CalendarFilter{CreatedBy: "u1"})
	require.NoError(t, err)
	assert.Len(t, calendars, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Martin family", calendars[0].Title)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarRepositoryFindByIDLoadsFamilies(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCalendarRepository(db)

	rows := calendarRows().
		AddRow("c1", "", "Martin family", true, 5, "u1", time.Now(), "u1", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM calendars c WHERE c.id = $1")).
		WithArgs("c1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT family_id FROM calendar_families WHERE calendar_id = $1 ORDER BY family_id")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"family_id"}).AddRow("f1"))

	calendar, err := repo.FindByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, calendar.HideDeathAnniversaries)
	assert.Equal(t, 5, calendar.YearsAhead)
	assert.Equal(t, []string{"f1"}, calendar.FamilyIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCalendarRepository(db)

	mock.ExpectExec("INSERT INTO calendars").
		WillReturnResult(sqlmock.NewResult(1, 1))

	calendar := &models.Calendar{Title: "Martin family", YearsAhead: models.DefaultYearsAhead}
	require.NoError(t, repo.Create(context.Background(), calendar))
	assert.NotEmpty(t, calendar.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarRepositorySetFamilies(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewCalendarRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM calendar_families WHERE calendar_id = $1")).
		WithArgs("c1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO calendar_families (calendar_id, family_id) VALUES ($1, $2)")).
		WithArgs("c1", "f1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SetFamilies(context.Background(), "c1", []string{"f1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
