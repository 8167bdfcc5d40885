package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/coraldesk/coraldesk-backend/internal/notifications"
	"github.com/coraldesk/coraldesk-backend/pkg/config"
	"github.com/coraldesk/coraldesk-backend/pkg/db"
	"github.com/coraldesk/coraldesk-backend/pkg/db/models"
	pkgerrors "github.com/coraldesk/coraldesk-backend/pkg/errors"
	"github.com/coraldesk/coraldesk-backend/pkg/logger"
	"github.com/coraldesk/coraldesk-backend/pkg/security"
)

var discountCeiling = decimal.NewFromInt(1)

// RegisterInput carries the fields for a new client account.
type RegisterInput struct {
	Email    string
	Name     string
	Phone    *string
	Password string
}

// UpdateInput carries optional profile and pricing changes. Nil fields keep
// the stored value.
type UpdateInput struct {
	Name         *string
	Phone        *string
	DiscountRate *decimal.Decimal
}

// ListParams filter the client listing.
type ListParams struct {
	Limit  int
	Offset int
	Query  string
}

// ClientList is one listing page plus the unpaged total.
type ClientList struct {
	Clients []models.Client
	Total   int64
}

type enqueuer interface {
	Enqueue(ctx context.Context, payload notifications.Payload, opts notifications.EnqueueOptions) (*models.NotificationJob, error)
}

// Service manages client accounts.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.Client, error)
	Authenticate(ctx context.Context, email, password string) (*models.Client, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Client, error)
	List(ctx context.Context, params ListParams) (*ClientList, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Client, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo  Repository
	queue enqueuer
	cfg   config.PasswordConfig
	logg  *logger.Logger
}

// NewService builds a client service with the required dependencies.
func NewService(repo Repository, queue enqueuer, cfg config.PasswordConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("clients repository required")
	}
	if queue == nil {
		return nil, fmt.Errorf("notification queue required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, queue: queue, cfg: cfg, logg: logg}, nil
}

// Register creates an account with a hashed password and queues the welcome
// notification after the row exists.
func (s *service) Register(ctx context.Context, input RegisterInput) (*models.Client, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	name := strings.TrimSpace(input.Name)
	switch {
	case email == "" || !strings.Contains(email, "@"):
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "valid email required")
	case name == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name required")
	case len(input.Password) < 8:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}

	hash, err := security.HashPassword(input.Password, s.cfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	client := &models.Client{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		Phone:        input.Phone,
		PasswordHash: hash,
		DiscountRate: decimal.Zero,
	}
	if err := s.repo.Create(ctx, client); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("email %s already registered", email))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create client")
	}

	payload := notifications.ClientRegistrationPayload{
		ClientID:    client.ID,
		ClientEmail: client.Email,
		ClientName:  client.Name,
	}
	if _, err := s.queue.Enqueue(ctx, payload, notifications.EnqueueOptions{}); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "client_id", client.ID.String()),
			"failed to enqueue registration notification")
	}
	return client, nil
}

// Authenticate returns the client when the credentials match. The same
// error shape covers unknown emails and wrong passwords.
func (s *service) Authenticate(ctx context.Context, email, password string) (*models.Client, error) {
	client, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load client")
	}

	ok, err := security.VerifyPassword(password, client.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	return client, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	client, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "client not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load client")
	}
	return client, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ClientList, error) {
	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 25
	}
	if params.Offset < 0 {
		params.Offset = 0
	}

	list, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list clients")
	}
	return &ClientList{Clients: list, Total: total}, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Client, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		updates["name"] = name
	}
	if input.Phone != nil {
		updates["phone"] = *input.Phone
	}
	if input.DiscountRate != nil {
		rate := *input.DiscountRate
		if rate.IsNegative() || rate.GreaterThanOrEqual(discountCeiling) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount rate must be in [0, 1)")
		}
		updates["discount_rate"] = rate
	}
	if len(updates) == 0 {
		return s.Get(ctx, id)
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update client")
	}
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete client")
	}
	return nil
}
