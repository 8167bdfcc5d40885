package bulletins

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coraldesk/coraldesk-backend/internal/notifications"
	"github.com/coraldesk/coraldesk-backend/pkg/db/models"
	pkgerrors "github.com/coraldesk/coraldesk-backend/pkg/errors"
	"github.com/coraldesk/coraldesk-backend/pkg/logger"
)

type enqueuer interface {
	Enqueue(ctx context.Context, payload notifications.Payload, opts notifications.EnqueueOptions) (*models.NotificationJob, error)
}

// recipientSource supplies the addresses a published bulletin goes out to.
type recipientSource interface {
	ListEmails(ctx context.Context) ([]string, error)
}

// UpdateInput carries optional bulletin edits. Nil fields keep the stored
// value.
type UpdateInput struct {
	Title *string
	Body  *string
}

// Service manages bulletins and their publication.
type Service interface {
	Create(ctx context.Context, title, body string) (*models.Bulletin, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Bulletin, error)
	List(ctx context.Context, publishedOnly bool) ([]models.Bulletin, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Bulletin, error)
	Publish(ctx context.Context, id uuid.UUID) (*models.Bulletin, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo       Repository
	queue      enqueuer
	recipients recipientSource
	logg       *logger.Logger
}

// NewService builds a bulletin service with the required dependencies.
func NewService(repo Repository, queue enqueuer, recipients recipientSource, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("bulletins repository required")
	}
	if queue == nil {
		return nil, fmt.Errorf("notification queue required")
	}
	if recipients == nil {
		return nil, fmt.Errorf("recipient source required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, queue: queue, recipients: recipients, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, title, body string) (*models.Bulletin, error) {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bulletin title required")
	}
	if body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bulletin body required")
	}

	bulletin := &models.Bulletin{
		ID:    uuid.New(),
		Title: title,
		Body:  body,
	}
	if err := s.repo.Create(ctx, bulletin); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bulletin")
	}
	return bulletin, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Bulletin, error) {
	bulletin, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bulletin not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bulletin")
	}
	return bulletin, nil
}

func (s *service) List(ctx context.Context, publishedOnly bool) ([]models.Bulletin, error) {
	bulletins, err := s.repo.List(ctx, publishedOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bulletins")
	}
	return bulletins, nil
}

// Update edits a draft. Published bulletins are immutable so what clients
// received stays on record.
func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Bulletin, error) {
	bulletin, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if bulletin.PublishedAt != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "bulletin already published")
	}

	updates := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "bulletin title required")
		}
		updates["title"] = title
		bulletin.Title = title
	}
	if input.Body != nil {
		body := strings.TrimSpace(*input.Body)
		if body == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "bulletin body required")
		}
		updates["body"] = body
		bulletin.Body = body
	}
	if len(updates) == 0 {
		return bulletin, nil
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update bulletin")
	}
	return bulletin, nil
}

// Publish stamps published_at once and queues delivery to every current
// client address. Publishing twice is rejected.
func (s *service) Publish(ctx context.Context, id uuid.UUID) (*models.Bulletin, error) {
	bulletin, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if bulletin.PublishedAt != nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "bulletin already published")
	}

	recipients, err := s.recipients.ListEmails(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list recipients")
	}

	now := time.Now().UTC()
	if err := s.repo.Update(ctx, id, map[string]any{"published_at": now}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish bulletin")
	}
	bulletin.PublishedAt = &now

	if len(recipients) == 0 {
		s.logg.Warn(s.logg.WithField(ctx, "bulletin_id", id.String()),
			"bulletin published with no recipients")
		return bulletin, nil
	}

	payload := notifications.BulletinPayload{
		BulletinID: bulletin.ID,
		Title:      bulletin.Title,
		Body:       bulletin.Body,
		Recipients: recipients,
	}
	if _, err := s.queue.Enqueue(ctx, payload, notifications.EnqueueOptions{}); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "bulletin_id", id.String()),
			"failed to enqueue bulletin notification")
	}
	return bulletin, nil
}

// Delete removes drafts only.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	bulletin, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if bulletin.PublishedAt != nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "published bulletins cannot be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete bulletin")
	}
	return nil
}
