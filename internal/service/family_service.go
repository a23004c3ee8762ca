package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jlebunetel/toolbox-api/internal/models"
	appErrors "github.com/jlebunetel/toolbox-api/pkg/errors"
)

type familyRepository interface {
	List(ctx context.Context, filter models.FamilyFilter) ([]models.Family, int, error)
	ListByUser(ctx context.Context, userID string) ([]models.Family, error)
	FindByID(ctx context.Context, id string) (*models.Family, error)
	Create(ctx context.Context, family *models.Family) error
	Update(ctx context.Context, family *models.Family) error
	Delete(ctx context.Context, id string) error
	SetUsers(ctx context.Context, familyID string, userIDs []string) error
}

// DefaultFamilyIcon decorates families that do not pick their own.
const DefaultFamilyIcon = "👪"

// FamilyRequest represents the payload for creating or updating a family.
type FamilyRequest struct {
	Icon    string   `json:"icon"`
	Title   string   `json:"title" validate:"required"`
	UserIDs []string `json:"user_ids"`
}

// FamilyService handles family management workflows.
type FamilyService struct {
	repo      familyRepository
	audit     auditRecorder
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewFamilyService creates an instance of FamilyService.
func NewFamilyService(repo familyRepository, audit auditRecorder, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *FamilyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &FamilyService{repo: repo, audit: audit, cache: cache, validator: validate, logger: logger}
}

// List returns families the actor may see, paginated. Superadmins list all,
// everyone else lists their memberships.
func (s *FamilyService) List(ctx context.Context, claims *models.JWTClaims, filter models.FamilyFilter) ([]models.Family, *models.Pagination, error) {
	if isSuperAdmin(claims.Role) {
		families, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list families")
		}
		page := filter.Page
		if page < 1 {
			page = 1
		}
		pageSize := filter.PageSize
		if pageSize <= 0 {
			pageSize = 20
		}
		return families, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
	}

	families, err := s.repo.ListByUser(ctx, claims.UserID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list families")
	}
	return families, &models.Pagination{Page: 1, PageSize: len(families), TotalCount: len(families)}, nil
}

// Get returns a family by ID when the actor may see it.
func (s *FamilyService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Family, error) {
	family, err := s.loadFamily(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccessFamily(claims, family) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "family is not accessible")
	}
	return family, nil
}

// Create adds a new family. The creator is authorized on it automatically.
func (s *FamilyService) Create(ctx context.Context, claims *models.JWTClaims, req FamilyRequest, meta models.LoginRequest) (*models.Family, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid family payload")
	}

	icon := req.Icon
	if icon == "" {
		icon = DefaultFamilyIcon
	}

	now := time.Now().UTC()
	family := &models.Family{
		ID:    uuid.NewString(),
		Icon:  icon,
		Title: req.Title,
		Audited: models.Audited{
			CreatedBy: claims.UserID,
			CreatedAt: now,
			ChangedBy: claims.UserID,
			ChangedAt: now,
		},
	}

	if err := s.repo.Create(ctx, family); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create family")
	}

	userIDs := req.UserIDs
	if !containsString(userIDs, claims.UserID) {
		userIDs = append(userIDs, claims.UserID)
	}
	if err := s.repo.SetUsers(ctx, family.ID, userIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to link family users")
	}
	family.UserIDs = userIDs

	s.recordWrite(ctx, claims, family.ID, nil, family, meta)
	s.invalidateFeeds(ctx)
	return family, nil
}

// Update modifies an existing family.
func (s *FamilyService) Update(ctx context.Context, claims *models.JWTClaims, id string, req FamilyRequest, meta models.LoginRequest) (*models.Family, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid family payload")
	}

	family, err := s.loadFamily(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccessFamily(claims, family) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "family is not accessible")
	}

	old := *family

	if req.Icon != "" {
		family.Icon = req.Icon
	}
	family.Title = req.Title
	family.ChangedBy = claims.UserID
	family.ChangedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, family); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update family")
	}
	if req.UserIDs != nil {
		if err := s.repo.SetUsers(ctx, family.ID, req.UserIDs); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update family users")
		}
		family.UserIDs = req.UserIDs
	}

	s.recordWrite(ctx, claims, family.ID, &old, family, meta)
	s.invalidateFeeds(ctx)
	return family, nil
}

// Delete removes a family.
func (s *FamilyService) Delete(ctx context.Context, claims *models.JWTClaims, id string, meta models.LoginRequest) error {
	family, err := s.loadFamily(ctx, id)
	if err != nil {
		return err
	}
	if !canAccessFamily(claims, family) {
		return appErrors.Clone(appErrors.ErrForbidden, "family is not accessible")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete family")
	}

	s.recordWrite(ctx, claims, id, family, nil, meta)
	s.invalidateFeeds(ctx)
	return nil
}

func (s *FamilyService) loadFamily(ctx context.Context, id string) (*models.Family, error) {
	family, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "family not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load family")
	}
	return family, nil
}

func (s *FamilyService) recordWrite(ctx context.Context, claims *models.JWTClaims, familyID string, before, after *models.Family, meta models.LoginRequest) {
	var oldPayload, newPayload []byte
	if before != nil {
		oldPayload, _ = json.Marshal(map[string]interface{}{"title": before.Title, "user_ids": before.UserIDs})
	}
	if after != nil {
		newPayload, _ = json.Marshal(map[string]interface{}{"title": after.Title, "user_ids": after.UserIDs})
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionFamilyWrite,
		Resource:   "families",
		ResourceID: &familyID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record family audit log", zap.Error(err))
	}
}

func (s *FamilyService) invalidateFeeds(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "feed:*"); err != nil {
		s.logger.Warn("failed to invalidate feed cache", zap.Error(err))
	}
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
