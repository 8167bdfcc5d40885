package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	pkgauth "github.com/coraldesk/coraldesk-backend/pkg/auth"
	"github.com/coraldesk/coraldesk-backend/pkg/config"
	"github.com/coraldesk/coraldesk-backend/pkg/db/models"
	"github.com/coraldesk/coraldesk-backend/pkg/enums"
	pkgerrors "github.com/coraldesk/coraldesk-backend/pkg/errors"
	"github.com/coraldesk/coraldesk-backend/pkg/security"
)

type stubUserRepo struct {
	users map[string]*models.User
	byID  map[uuid.UUID]*models.User

	lastLoginID uuid.UUID
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		users: map[string]*models.User{},
		byID:  map[uuid.UUID]*models.User{},
	}
}

func (s *stubUserRepo) Create(_ context.Context, user *models.User) error {
	s.users[user.Email] = user
	s.byID[user.ID] = user
	return nil
}

func (s *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := s.users[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (s *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	user, ok := s.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (s *stubUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, _ time.Time) error {
	s.lastLoginID = id
	return nil
}

type stubClientAuth struct {
	client *models.Client
}

func (s *stubClientAuth) Authenticate(_ context.Context, email, password string) (*models.Client, error) {
	if s.client == nil || s.client.Email != email || password != "client-pass" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	return s.client, nil
}

func (s *stubClientAuth) Get(_ context.Context, id uuid.UUID) (*models.Client, error) {
	if s.client == nil || s.client.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "client not found")
	}
	return s.client, nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "coraldesk-test",
		ExpirationMinutes: 30,
	}
}

func testArgonConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8 * 1024,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func newAuthService(t *testing.T, users Repository, clients clientAuthenticator) Service {
	t.Helper()

	svc, err := NewService(ServiceParams{
		Users:     users,
		Clients:   clients,
		JWTConfig: testJWTConfig(),
	})
	require.NoError(t, err)
	return svc
}

func seedStaff(t *testing.T, repo *stubUserRepo, email, password string, role enums.UserRole) *models.User {
	t.Helper()

	hash, err := security.HashPassword(password, testArgonConfig())
	require.NoError(t, err)
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         "Staff Member",
		PasswordHash: hash,
		Role:         role,
	}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func TestStaffLoginIssuesToken(t *testing.T) {
	users := newStubUserRepo()
	staff := seedStaff(t, users, "admin@coraldesk.local", "reef-master", enums.UserRoleAdmin)
	svc := newAuthService(t, users, &stubClientAuth{})
	ctx := context.Background()

	session, err := svc.StaffLogin(ctx, "admin@coraldesk.local", "reef-master")
	require.NoError(t, err)
	assert.Equal(t, pkgauth.ActorStaff, session.Actor)
	assert.Equal(t, staff.ID, session.SubjectID)
	require.NotNil(t, session.Role)
	assert.Equal(t, "admin", *session.Role)
	assert.Equal(t, staff.ID, users.lastLoginID)

	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, staff.ID, claims.SubjectID)
	assert.Equal(t, pkgauth.ActorStaff, claims.Actor)
}

func TestStaffLoginRejectsBadCredentials(t *testing.T) {
	users := newStubUserRepo()
	seedStaff(t, users, "admin@coraldesk.local", "reef-master", enums.UserRoleAdmin)
	svc := newAuthService(t, users, &stubClientAuth{})
	ctx := context.Background()

	_, err := svc.StaffLogin(ctx, "admin@coraldesk.local", "wrong")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())

	_, err = svc.StaffLogin(ctx, "ghost@coraldesk.local", "reef-master")
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
}

func TestClientLoginAndRefresh(t *testing.T) {
	client := &models.Client{ID: uuid.New(), Email: "reef@example.com", Name: "Reef Keeper"}
	svc := newAuthService(t, newStubUserRepo(), &stubClientAuth{client: client})
	ctx := context.Background()

	session, err := svc.ClientLogin(ctx, "reef@example.com", "client-pass")
	require.NoError(t, err)
	assert.Equal(t, pkgauth.ActorClient, session.Actor)
	assert.Nil(t, session.Role)
	require.NotNil(t, session.Client)

	refreshed, err := svc.Refresh(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, client.ID, refreshed.SubjectID)
	assert.Equal(t, pkgauth.ActorClient, refreshed.Actor)
}

func TestRefreshRejectsGarbageToken(t *testing.T) {
	svc := newAuthService(t, newStubUserRepo(), &stubClientAuth{})

	_, err := svc.Refresh(context.Background(), "not-a-jwt")
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
}

func TestRefreshRejectsDeletedSubject(t *testing.T) {
	users := newStubUserRepo()
	staff := seedStaff(t, users, "admin@coraldesk.local", "reef-master", enums.UserRoleStaff)
	svc := newAuthService(t, users, &stubClientAuth{})
	ctx := context.Background()

	session, err := svc.StaffLogin(ctx, "admin@coraldesk.local", "reef-master")
	require.NoError(t, err)

	delete(users.users, staff.Email)
	delete(users.byID, staff.ID)

	_, err = svc.Refresh(ctx, session.Token)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
}
