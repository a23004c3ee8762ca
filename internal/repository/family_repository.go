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

var familyColumns = fmt.Sprintf(`f.id, f.icon, f.title, COALESCE(f.created_by, '%[1]s') AS created_by, f.created_at, COALESCE(f.changed_by, '%[1]s') AS changed_by, f.changed_at`, models.SentinelUsername)

// FamilyRepository manages persistence for families.
type FamilyRepository struct {
	db *sqlx.DB
}

// NewFamilyRepository constructs a FamilyRepository.
func NewFamilyRepository(db *sqlx.DB) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// List returns families matching the provided filters.
func (r *FamilyRepository) List(ctx context.Context, filter models.FamilyFilter) ([]models.Family, int, error) {
	base := "FROM families f WHERE 1=1"
	var args []interface{}

	if filter.Search != "" {
		base += fmt.Sprintf(" AND LOWER(f.title) LIKE $%d", len(args)+1)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY f.title ASC LIMIT %d OFFSET %d", familyColumns, base, size, offset)

	var families []models.Family
	if err := r.db.SelectContext(ctx, &families, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list families: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count families: %w", err)
	}
	return families, total, nil
}

// ListByUser returns the families the given user is authorized on.
func (r *FamilyRepository) ListByUser(ctx context.Context, userID string) ([]models.Family, error) {
	query := fmt.Sprintf(`SELECT %s FROM families f JOIN family_users fu ON fu.family_id = f.id WHERE fu.user_id = $1 ORDER BY f.title ASC`, familyColumns)
	var families []models.Family
	if err := r.db.SelectContext(ctx, &families, query, userID); err != nil {
		return nil, fmt.Errorf("list families by user: %w", err)
	}
	return families, nil
}

// FindByID fetches a family by ID, authorized users included.
func (r *FamilyRepository) FindByID(ctx context.Context, id string) (*models.Family, error) {
	query := fmt.Sprintf("SELECT %s FROM families f WHERE f.id = $1", familyColumns)
	var family models.Family
	if err := r.db.GetContext(ctx, &family, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find family by id: %w", err)
	}

	const usersQuery = `SELECT user_id FROM family_users WHERE family_id = $1 ORDER BY user_id`
	if err := r.db.SelectContext(ctx, &family.UserIDs, usersQuery, id); err != nil {
		return nil, fmt.Errorf("load family users: %w", err)
	}
	return &family, nil
}

// IsMember reports whether the user is authorized on the family.
func (r *FamilyRepository) IsMember(ctx context.Context, familyID, userID string) (bool, error) {
	const query = `SELECT 1 FROM family_users WHERE family_id = $1 AND user_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, familyID, userID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check family membership: %w", err)
	}
	return true, nil
}

// Create inserts a new family record.
func (r *FamilyRepository) Create(ctx context.Context, family *models.Family) error {
	if family.ID == "" {
		family.ID = uuid.NewString()
	}
	const query = `INSERT INTO families (id, icon, title, created_by, created_at, changed_by, changed_at) VALUES (:id, :icon, :title, :created_by, :created_at, :changed_by, :changed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, family); err != nil {
		return fmt.Errorf("create family: %w", err)
	}
	return nil
}

// Update modifies an existing family.
func (r *FamilyRepository) Update(ctx context.Context, family *models.Family) error {
	const query = `UPDATE families SET icon = :icon, title = :title, changed_by = :changed_by, changed_at = :changed_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, family); err != nil {
		return fmt.Errorf("update family: %w", err)
	}
	return nil
}

// Delete removes a family. Membership links go with it via cascade.
func (r *FamilyRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM families WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete family: %w", err)
	}
	return nil
}

// SetUsers replaces the family's authorized users.
func (r *FamilyRepository) SetUsers(ctx context.Context, familyID string, userIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set users: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM family_users WHERE family_id = $1`, familyID); err != nil {
		return fmt.Errorf("clear family users: %w", err)
	}
	for _, userID := range userIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO family_users (family_id, user_id) VALUES ($1, $2)`, familyID, userID); err != nil {
			return fmt.Errorf("link user %s to family: %w", userID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set users: %w", err)
	}
	return nil
}
