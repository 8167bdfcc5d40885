package clients

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/coraldesk/coraldesk-backend/internal/notifications"
	"github.com/coraldesk/coraldesk-backend/pkg/config"
	"github.com/coraldesk/coraldesk-backend/pkg/db/models"
	"github.com/coraldesk/coraldesk-backend/pkg/enums"
	pkgerrors "github.com/coraldesk/coraldesk-backend/pkg/errors"
	"github.com/coraldesk/coraldesk-backend/pkg/logger"
)

func setupClientsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS clients (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  phone TEXT,
  password_hash TEXT NOT NULL,
  discount_rate NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)
	require.NoError(t, db.Exec("DELETE FROM clients").Error)
	return db
}

type recordingQueue struct {
	payloads []notifications.Payload
	err      error
}

func (q *recordingQueue) Enqueue(_ context.Context, payload notifications.Payload, _ notifications.EnqueueOptions) (*models.NotificationJob, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.payloads = append(q.payloads, payload)
	return &models.NotificationJob{ID: uuid.New(), Kind: payload.Kind()}, nil
}

func testPasswordConfig() config.PasswordConfig {
	return config.PasswordConfig{
		ArgonMemoryKB:    8 * 1024,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func newClientsService(t *testing.T, db *gorm.DB, queue *recordingQueue) Service {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "clients-test", Output: io.Discard})

	svc, err := NewService(NewRepository(db), queue, testPasswordConfig(), logg)
	require.NoError(t, err)
	return svc
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()

	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func strPtr(s string) *string { return &s }

func TestRegisterHashesPasswordAndEnqueuesWelcome(t *testing.T) {
	db := setupClientsTestDB(t)
	queue := &recordingQueue{}
	svc := newClientsService(t, db, queue)
	ctx := context.Background()

	client, err := svc.Register(ctx, RegisterInput{
		Email:    "  Reef@Example.COM ",
		Name:     "Reef Keeper",
		Phone:    strPtr("+15550001111"),
		Password: "correct-horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "reef@example.com", client.Email)
	assert.NotEqual(t, "correct-horse", client.PasswordHash)
	assert.Contains(t, client.PasswordHash, "$argon2id$")
	assert.True(t, client.DiscountRate.IsZero())

	require.Len(t, queue.payloads, 1)
	assert.Equal(t, enums.NotificationKindClientRegistration, queue.payloads[0].Kind())
	welcome := queue.payloads[0].(notifications.ClientRegistrationPayload)
	assert.Equal(t, client.ID, welcome.ClientID)
	assert.Equal(t, "reef@example.com", welcome.ClientEmail)
}

func TestRegisterValidation(t *testing.T) {
	db := setupClientsTestDB(t)
	svc := newClientsService(t, db, &recordingQueue{})
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "not-an-email", Name: "X", Password: "long-enough"})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Register(ctx, RegisterInput{Email: "a@b.com", Name: " ", Password: "long-enough"})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Register(ctx, RegisterInput{Email: "a@b.com", Name: "X", Password: "short"})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	db := setupClientsTestDB(t)
	svc := newClientsService(t, db, &recordingQueue{})
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "dup@example.com", Name: "First", Password: "long-enough"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Email: "DUP@example.com", Name: "Second", Password: "long-enough"})
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestAuthenticate(t *testing.T) {
	db := setupClientsTestDB(t)
	svc := newClientsService(t, db, &recordingQueue{})
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterInput{Email: "auth@example.com", Name: "Auth", Password: "swordfish-42"})
	require.NoError(t, err)

	client, err := svc.Authenticate(ctx, "auth@example.com", "swordfish-42")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, client.ID)

	_, err = svc.Authenticate(ctx, "auth@example.com", "wrong")
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	_, err = svc.Authenticate(ctx, "ghost@example.com", "swordfish-42")
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestUpdateDiscountRate(t *testing.T) {
	db := setupClientsTestDB(t)
	svc := newClientsService(t, db, &recordingQueue{})
	ctx := context.Background()

	client, err := svc.Register(ctx, RegisterInput{Email: "vip@example.com", Name: "VIP", Password: "long-enough"})
	require.NoError(t, err)

	rate := decimal.RequireFromString("0.15")
	updated, err := svc.Update(ctx, client.ID, UpdateInput{DiscountRate: &rate})
	require.NoError(t, err)
	assert.True(t, updated.DiscountRate.Equal(rate))

	over := decimal.RequireFromString("1.0")
	_, err = svc.Update(ctx, client.ID, UpdateInput{DiscountRate: &over})
	requireCode(t, err, pkgerrors.CodeValidation)

	negative := decimal.RequireFromString("-0.1")
	_, err = svc.Update(ctx, client.ID, UpdateInput{DiscountRate: &negative})
	requireCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Update(ctx, uuid.New(), UpdateInput{DiscountRate: &rate})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestListAndDelete(t *testing.T) {
	db := setupClientsTestDB(t)
	svc := newClientsService(t, db, &recordingQueue{})
	ctx := context.Background()

	first, err := svc.Register(ctx, RegisterInput{Email: "one@example.com", Name: "Anemone Fan", Password: "long-enough"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, RegisterInput{Email: "two@example.com", Name: "Clam Collector", Password: "long-enough"})
	require.NoError(t, err)

	page, err := svc.List(ctx, ListParams{Query: "anemone"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)
	require.Len(t, page.Clients, 1)
	assert.Equal(t, first.ID, page.Clients[0].ID)

	require.NoError(t, svc.Delete(ctx, first.ID))
	_, err = svc.Get(ctx, first.ID)
	requireCode(t, err, pkgerrors.CodeNotFound)
}
