package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jlebunetel/toolbox-api/internal/models"
)

type userStoreMock struct {
	byUsername map[string]*models.User
	byEmail    map[string]*models.User
	created    *models.User
	logs       []models.AuditLog
}

func newUserStoreMock() *userStoreMock {
	return &userStoreMock{
		byUsername: make(map[string]*models.User),
		byEmail:    make(map[string]*models.User),
	}
}

func (m *userStoreMock) List(context.Context, models.UserFilter) ([]models.User, int, error) {
	return nil, 0, nil
}

func (m *userStoreMock) FindByID(_ context.Context, id string) (*models.User, error) {
	if m.created != nil && m.created.ID == id {
		return m.created, nil
	}
	return nil, sql.ErrNoRows
}

func (m *userStoreMock) FindByUsername(_ context.Context, username string) (*models.User, error) {
	if u, ok := m.byUsername[username]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *userStoreMock) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *userStoreMock) Create(_ context.Context, user *models.User) error {
	m.created = user
	return nil
}

func (m *userStoreMock) Update(context.Context, *models.User) error { return nil }
func (m *userStoreMock) Delete(context.Context, string) error       { return nil }

func (m *userStoreMock) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, *log)
	return nil
}

func validCreateUserRequest() CreateUserRequest {
	return CreateUserRequest{
		Username: "alice",
		Email:    "Alice@Example.com",
		Role:     models.RoleMember,
		Active:   true,
		Password: "secret123",
	}
}

func TestUserServiceCreate(t *testing.T) {
	repo := newUserStoreMock()
	svc := NewUserService(repo, nil, nil)

	user, err := svc.Create(context.Background(), validCreateUserRequest(), "admin", models.LoginRequest{})
	require.NoError(t, err)

	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "secret123", user.PasswordHash)
	require.Len(t, repo.logs, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.logs[0].Action)
}

func TestUserServiceCreateRejectsReservedUsername(t *testing.T) {
	svc := NewUserService(newUserStoreMock(), nil, nil)

	req := validCreateUserRequest()
	req.Username = "Deleted"

	_, err := svc.Create(context.Background(), req, "admin", models.LoginRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
}

func TestUserServiceCreateRejectsDuplicates(t *testing.T) {
	repo := newUserStoreMock()
	repo.byUsername["alice"] = &models.User{ID: "u1", Username: "alice"}
	svc := NewUserService(repo, nil, nil)

	_, err := svc.Create(context.Background(), validCreateUserRequest(), "admin", models.LoginRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username already exists")

	repo2 := newUserStoreMock()
	repo2.byEmail["Alice@Example.com"] = &models.User{ID: "u1", Email: "alice@example.com"}
	svc2 := NewUserService(repo2, nil, nil)

	_, err = svc2.Create(context.Background(), validCreateUserRequest(), "admin", models.LoginRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email already exists")
}
