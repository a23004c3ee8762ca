package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jlebunetel/toolbox-api/internal/models"
)

// personColumns substitutes the sentinel username for audit actors whose
// account has been removed (created_by and changed_by null out on delete).
var personColumns = fmt.Sprintf(`p.id, p.nickname, p.first_name, p.middle_names, p.birth_name, p.married_name, p.preferred_name, p.date_of_birth, p.date_of_death, p.sex, p.species, COALESCE(p.created_by, '%[1]s') AS created_by, p.created_at, COALESCE(p.changed_by, '%[1]s') AS changed_by, p.changed_at`, models.SentinelUsername)

// PersonRepository manages persistence for tracked people.
type PersonRepository struct {
	db *sqlx.DB
}

// NewPersonRepository constructs a PersonRepository.
func NewPersonRepository(db *sqlx.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

// List returns people matching the provided filters.
func (r *PersonRepository) List(ctx context.Context, filter models.PersonFilter) ([]models.Person, int, error) {
	base := "FROM people p"
	var args []interface{}
	conditions := []string{"1=1"}

	if filter.FamilyID != "" {
		base += " JOIN family_members fm ON fm.person_id = p.id"
		conditions = append(conditions, fmt.Sprintf("fm.family_id = $%d", len(args)+1))
		args = append(args, filter.FamilyID)
	}
	if filter.Alive != nil {
		if *filter.Alive {
			conditions = append(conditions, "p.date_of_death IS NULL")
		} else {
			conditions = append(conditions, "p.date_of_death IS NOT NULL")
		}
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(p.nickname) LIKE $%d OR LOWER(p.first_name) LIKE $%d OR LOWER(p.birth_name) LIKE $%d OR LOWER(p.married_name) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.ViewerID != "" {
		conditions = append(conditions, fmt.Sprintf("(p.created_by = $%d OR p.id IN (SELECT fm2.person_id FROM family_members fm2 JOIN family_users fu ON fu.family_id = fm2.family_id WHERE fu.user_id = $%d))", len(args)+1, len(args)+1))
		args = append(args, filter.ViewerID)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY p.first_name ASC, p.birth_name ASC LIMIT %d OFFSET %d", personColumns, base, size, offset)

	var people []models.Person
	if err := r.db.SelectContext(ctx, &people, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list people: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(DISTINCT p.id) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count people: %w", err)
	}
	return people, total, nil
}

// FindByID fetches a person by ID, family links included.
func (r *PersonRepository) FindByID(ctx context.Context, id string) (*models.Person, error) {
	query := fmt.Sprintf("SELECT %s FROM people p WHERE p.id = $1", personColumns)
	var person models.Person
	if err := r.db.GetContext(ctx, &person, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find person by id: %w", err)
	}

	const familiesQuery = `SELECT family_id FROM family_members WHERE person_id = $1 ORDER BY family_id`
	if err := r.db.SelectContext(ctx, &person.FamilyIDs, familiesQuery, id); err != nil {
		return nil, fmt.Errorf("load person families: %w", err)
	}
	return &person, nil
}

// ListByFamilies returns the distinct people linked to any of the given
// families. People who belong to several of them appear once.
func (r *PersonRepository) ListByFamilies(ctx context.Context, familyIDs []string) ([]models.Person, error) {
	if len(familyIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT DISTINCT %s FROM people p JOIN family_members fm ON fm.person_id = p.id WHERE fm.family_id = ANY($1) ORDER BY p.first_name ASC, p.birth_name ASC`, personColumns)
	var people []models.Person
	if err := r.db.SelectContext(ctx, &people, query, pq.Array(familyIDs)); err != nil {
		return nil, fmt.Errorf("list people by families: %w", err)
	}
	return people, nil
}

// Create inserts a new person record.
func (r *PersonRepository) Create(ctx context.Context, person *models.Person) error {
	if person.ID == "" {
		person.ID = uuid.NewString()
	}
	const query = `INSERT INTO people (id, nickname, first_name, middle_names, birth_name, married_name, preferred_name, date_of_birth, date_of_death, sex, species, created_by, created_at, changed_by, changed_at)
        VALUES (:id, :nickname, :first_name, :middle_names, :birth_name, :married_name, :preferred_name, :date_of_birth, :date_of_death, :sex, :species, :created_by, :created_at, :changed_by, :changed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, person); err != nil {
		return fmt.Errorf("create person: %w", err)
	}
	return nil
}

// Update modifies an existing person.
func (r *PersonRepository) Update(ctx context.Context, person *models.Person) error {
	const query = `UPDATE people SET nickname = :nickname, first_name = :first_name, middle_names = :middle_names, birth_name = :birth_name, married_name = :married_name, preferred_name = :preferred_name, date_of_birth = :date_of_birth, date_of_death = :date_of_death, sex = :sex, species = :species, changed_by = :changed_by, changed_at = :changed_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, person); err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	return nil
}

// Delete removes a person. Family links go with it via cascade.
func (r *PersonRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM people WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	return nil
}

// SetFamilies replaces the person's family links.
func (r *PersonRepository) SetFamilies(ctx context.Context, personID string, familyIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set families: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM family_members WHERE person_id = $1`, personID); err != nil {
		return fmt.Errorf("clear person families: %w", err)
	}
	for _, familyID := range familyIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO family_members (family_id, person_id) VALUES ($1, $2)`, familyID, personID); err != nil {
			return fmt.Errorf("link person to family %s: %w", familyID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set families: %w", err)
	}
	return nil
}
