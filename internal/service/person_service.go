package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/jlebunetel/toolbox-api/internal/models"
	appErrors "github.com/jlebunetel/toolbox-api/pkg/errors"
)

type personRepository interface {
	List(ctx context.Context, filter models.PersonFilter) ([]models.Person, int, error)
	FindByID(ctx context.Context, id string) (*models.Person, error)
	Create(ctx context.Context, person *models.Person) error
	Update(ctx context.Context, person *models.Person) error
	Delete(ctx context.Context, id string) error
	SetFamilies(ctx context.Context, personID string, familyIDs []string) error
}

type personFamilyRepository interface {
	ListByUser(ctx context.Context, userID string) ([]models.Family, error)
	IsMember(ctx context.Context, familyID, userID string) (bool, error)
	FindByID(ctx context.Context, id string) (*models.Family, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// PersonRequest represents the payload for creating or updating a person.
// Dates are calendar dates serialized as RFC 3339 timestamps at midnight UTC.
type PersonRequest struct {
	Nickname      string         `json:"nickname"`
	FirstName     string         `json:"first_name" validate:"required"`
	MiddleNames   []string       `json:"middle_names"`
	BirthName     string         `json:"birth_name"`
	MarriedName   string         `json:"married_name"`
	PreferredName string         `json:"preferred_name"`
	DateOfBirth   *time.Time     `json:"date_of_birth"`
	DateOfDeath   *time.Time     `json:"date_of_death"`
	Sex           models.Sex     `json:"sex" validate:"gte=0,lte=2"`
	Species       models.Species `json:"species" validate:"gte=0,lte=3"`
	FamilyIDs     []string       `json:"family_ids"`
}

// PersonService handles person management workflows.
type PersonService struct {
	repo      personRepository
	families  personFamilyRepository
	audit     auditRecorder
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPersonService creates an instance of PersonService.
func NewPersonService(repo personRepository, families personFamilyRepository, audit auditRecorder, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *PersonService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PersonService{repo: repo, families: families, audit: audit, cache: cache, validator: validate, logger: logger}
}

// List returns people the actor may see, paginated.
func (s *PersonService) List(ctx context.Context, claims *models.JWTClaims, filter models.PersonFilter) ([]models.Person, *models.Pagination, error) {
	if !isSuperAdmin(claims.Role) {
		filter.ViewerID = claims.UserID
	}
	if filter.FamilyID != "" {
		if err := s.requireFamilyAccess(ctx, claims, filter.FamilyID); err != nil {
			return nil, nil, err
		}
	}

	people, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list people")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return people, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a person by ID when the actor may see it.
func (s *PersonService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Person, error) {
	person, err := s.loadPerson(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requirePersonAccess(ctx, claims, person); err != nil {
		return nil, err
	}
	return person, nil
}

// Create adds a new person linked to the requested families.
func (s *PersonService) Create(ctx context.Context, claims *models.JWTClaims, req PersonRequest, meta models.LoginRequest) (*models.Person, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if err := s.requireFamiliesAccess(ctx, claims, req.FamilyIDs); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	person := &models.Person{
		ID:            uuid.NewString(),
		Nickname:      req.Nickname,
		FirstName:     req.FirstName,
		MiddleNames:   pq.StringArray(req.MiddleNames),
		BirthName:     req.BirthName,
		MarriedName:   req.MarriedName,
		PreferredName: req.PreferredName,
		DateOfBirth:   req.DateOfBirth,
		DateOfDeath:   req.DateOfDeath,
		Sex:           req.Sex,
		Species:       req.Species,
		Audited: models.Audited{
			CreatedBy: claims.UserID,
			CreatedAt: now,
			ChangedBy: claims.UserID,
			ChangedAt: now,
		},
	}

	if err := s.repo.Create(ctx, person); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create person")
	}
	if len(req.FamilyIDs) > 0 {
		if err := s.repo.SetFamilies(ctx, person.ID, req.FamilyIDs); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link person families")
		}
		person.FamilyIDs = req.FamilyIDs
	}

	s.recordWrite(ctx, claims, person.ID, nil, person, meta)
	s.invalidateFeeds(ctx)
	return person, nil
}

// Update modifies an existing person.
func (s *PersonService) Update(ctx context.Context, claims *models.JWTClaims, id string, req PersonRequest, meta models.LoginRequest) (*models.Person, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	person, err := s.loadPerson(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requirePersonAccess(ctx, claims, person); err != nil {
		return nil, err
	}
	if err := s.requireFamiliesAccess(ctx, claims, req.FamilyIDs); err != nil {
		return nil, err
	}

	old := *person

	person.Nickname = req.Nickname
	person.FirstName = req.FirstName
	person.MiddleNames = pq.StringArray(req.MiddleNames)
	person.BirthName = req.BirthName
	person.MarriedName = req.MarriedName
	person.PreferredName = req.PreferredName
	person.DateOfBirth = req.DateOfBirth
	person.DateOfDeath = req.DateOfDeath
	person.Sex = req.Sex
	person.Species = req.Species
	person.ChangedBy = claims.UserID
	person.ChangedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, person); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update person")
	}
	if req.FamilyIDs != nil {
		if err := s.repo.SetFamilies(ctx, person.ID, req.FamilyIDs); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update person families")
		}
		person.FamilyIDs = req.FamilyIDs
	}

	s.recordWrite(ctx, claims, person.ID, &old, person, meta)
	s.invalidateFeeds(ctx)
	return person, nil
}

// Delete removes a person.
func (s *PersonService) Delete(ctx context.Context, claims *models.JWTClaims, id string, meta models.LoginRequest) error {
	person, err := s.loadPerson(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requirePersonAccess(ctx, claims, person); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete person")
	}

	s.recordWrite(ctx, claims, id, person, nil, meta)
	s.invalidateFeeds(ctx)
	return nil
}

func (s *PersonService) validateRequest(req PersonRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid person payload")
	}
	if req.DateOfBirth != nil && req.DateOfDeath != nil && req.DateOfDeath.Before(*req.DateOfBirth) {
		return appErrors.Clone(appErrors.ErrValidation, "date of death precedes date of birth")
	}
	return nil
}

func (s *PersonService) loadPerson(ctx context.Context, id string) (*models.Person, error) {
	person, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "person not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load person")
	}
	return person, nil
}

func (s *PersonService) requirePersonAccess(ctx context.Context, claims *models.JWTClaims, person *models.Person) error {
	if isSuperAdmin(claims.Role) || person.CreatedBy == claims.UserID {
		return nil
	}
	families, err := s.families.ListByUser(ctx, claims.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load family memberships")
	}
	if !canAccessPerson(claims, person, familyIDSet(families)) {
		return appErrors.Clone(appErrors.ErrForbidden, "person is not accessible")
	}
	return nil
}

func (s *PersonService) requireFamilyAccess(ctx context.Context, claims *models.JWTClaims, familyID string) error {
	if isSuperAdmin(claims.Role) {
		return nil
	}
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
	return nil
}

func (s *PersonService) requireFamiliesAccess(ctx context.Context, claims *models.JWTClaims, familyIDs []string) error {
	for _, familyID := range familyIDs {
		if err := s.requireFamilyAccess(ctx, claims, familyID); err != nil {
			return err
		}
	}
	return nil
}

func (s *PersonService) recordWrite(ctx context.Context, claims *models.JWTClaims, personID string, before, after *models.Person, meta models.LoginRequest) {
	var oldPayload, newPayload []byte
	if before != nil {
		oldPayload, _ = json.Marshal(map[string]interface{}{"first_name": before.FirstName, "date_of_birth": before.DateOfBirth, "date_of_death": before.DateOfDeath})
	}
	if after != nil {
		newPayload, _ = json.Marshal(map[string]interface{}{"first_name": after.FirstName, "date_of_birth": after.DateOfBirth, "date_of_death": after.DateOfDeath})
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionPersonWrite,
		Resource:   "people",
		ResourceID: &personID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record person audit log", zap.Error(err))
	}
}

func (s *PersonService) invalidateFeeds(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "feed:*"); err != nil {
		s.logger.Warn("failed to invalidate feed cache", zap.Error(err))
	}
}
