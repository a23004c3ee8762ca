package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlebunetel/toolbox-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func personRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "nickname", "first_name", "middle_names", "birth_name", "married_name", "preferred_name", "date_of_birth", "date_of_death", "sex", "species", "created_by", "created_at", "changed_by", "changed_at"})
}

func TestPersonRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPersonRepository(db)

	dob := time.Date(1990, time.June, 15, 0, 0, 0, 0, time.UTC)
	rows := personRows().
		AddRow("p1", "Ada", "Augusta", "{}", "Byron", "", "Lovelace", dob, nil, 2, 1, "u1", time.Now(), "u1", time.Now())

	mock.ExpectQuery(regexp.QuoteMeta("FROM people p WHERE 1=1 ORDER BY p.first_name ASC, p.birth_name ASC LIMIT 20 OFFSET 0")).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT p.id) FROM people p WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	people, total, err := repo.List(context.Background(), models.PersonFilter{})
	require.NoError(t, err)
	assert.Len(t, people, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Lovelace", people[0].PreferredName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonRepositoryListFiltersByFamilyAndAlive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPersonRepository(db)

	alive := true
	mock.ExpectQuery(regexp.QuoteMeta("FROM people p JOIN family_members fm ON fm.person_id = p.id WHERE 1=1 AND fm.family_id = $1 AND p.date_of_death IS NULL")).
		WithArgs("f1").
		WillReturnRows(personRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT p.id)")).
		WithArgs("f1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	people, total, err := repo.List(context.Background(), models.PersonFilter{FamilyID: "f1", Alive: &alive})
	require.NoError(t, err)
	assert.Empty(t, people)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonRepositoryFindByIDLoadsFamilies(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPersonRepository(db)

	rows := personRows().
		AddRow("p1", "Ada", "Augusta", "{}", "Byron", "", "", nil, nil, 2, 1, "deleted", time.Now(), "deleted", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM people p WHERE p.id = $1")).
		WithArgs("p1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT family_id FROM family_members WHERE person_id = $1 ORDER BY family_id")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"family_id"}).AddRow("f1").AddRow("f2"))

	person, err := repo.FindByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"f1", "f2"}, person.FamilyIDs)
	// Actor deleted: reads carry the sentinel.
	assert.Equal(t, models.SentinelUsername, person.CreatedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPersonRepository(db)

	mock.ExpectExec("INSERT INTO people").
		WillReturnResult(sqlmock.NewResult(1, 1))

	person := &models.Person{FirstName: "Augusta", BirthName: "Byron", Sex: models.SexFemale, Species: models.SpeciesHuman}
	require.NoError(t, repo.Create(context.Background(), person))
	assert.NotEmpty(t, person.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonRepositorySetFamilies(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPersonRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM family_members WHERE person_id = $1")).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO family_members (family_id, person_id) VALUES ($1, $2)")).
		WithArgs("f1", "p1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SetFamilies(context.Background(), "p1", []string{"f1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}
