package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coraldesk/coraldesk-backend/internal/clients"
	pkgauth "github.com/coraldesk/coraldesk-backend/pkg/auth"
	"github.com/coraldesk/coraldesk-backend/pkg/config"
	"github.com/coraldesk/coraldesk-backend/pkg/db/models"
	pkgerrors "github.com/coraldesk/coraldesk-backend/pkg/errors"
	"github.com/coraldesk/coraldesk-backend/pkg/security"
)

const invalidCredentialsMessage = "invalid credentials"

// Session is the minted token plus its expiry and subject summary.
type Session struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Actor     pkgauth.Actor  `json:"actor"`
	SubjectID uuid.UUID      `json:"subject_id"`
	Role      *string        `json:"role,omitempty"`
	Client    *models.Client `json:"client,omitempty"`
	User      *models.User   `json:"user,omitempty"`
}

type clientAuthenticator interface {
	Authenticate(ctx context.Context, email, password string) (*models.Client, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Client, error)
}

// Service authenticates staff and clients and mints access tokens. It is
// constructed once at process start so configuration problems surface
// immediately instead of on the first login.
type Service interface {
	StaffLogin(ctx context.Context, email, password string) (*Session, error)
	ClientLogin(ctx context.Context, email, password string) (*Session, error)
	Refresh(ctx context.Context, token string) (*Session, error)
}

type service struct {
	users   Repository
	clients clientAuthenticator
	jwtCfg  config.JWTConfig
	now     func() time.Time
}

// ServiceParams bundle the auth service dependencies.
type ServiceParams struct {
	Users     Repository
	Clients   clientAuthenticator
	JWTConfig config.JWTConfig
}

// NewService validates the JWT configuration eagerly and returns the auth
// service.
func NewService(params ServiceParams) (Service, error) {
	if params.Users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if params.Clients == nil {
		return nil, fmt.Errorf("client service required")
	}
	if strings.TrimSpace(params.JWTConfig.Secret) == "" {
		return nil, fmt.Errorf("jwt secret required")
	}
	if strings.TrimSpace(params.JWTConfig.Issuer) == "" {
		return nil, fmt.Errorf("jwt issuer required")
	}
	return &service{
		users:   params.Users,
		clients: params.Clients,
		jwtCfg:  params.JWTConfig,
		now:     time.Now,
	}, nil
}

func (s *service) StaffLogin(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}

	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record login")
	}
	user.LastLoginAt = &now

	return s.mint(pkgauth.AccessTokenPayload{
		SubjectID: user.ID,
		Actor:     pkgauth.ActorStaff,
		Role:      string(user.Role),
	}, nil, user)
}

func (s *service) ClientLogin(ctx context.Context, email, password string) (*Session, error) {
	client, err := s.clients.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.mint(pkgauth.AccessTokenPayload{
		SubjectID: client.ID,
		Actor:     pkgauth.ActorClient,
	}, client, nil)
}

// Refresh reissues a token for a still-valid session, re-checking that the
// subject still exists.
func (s *service) Refresh(ctx context.Context, token string) (*Session, error) {
	claims, err := pkgauth.ParseAccessToken(s.jwtCfg, token)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired token")
	}

	switch claims.Actor {
	case pkgauth.ActorStaff:
		user, err := s.users.FindByID(ctx, claims.SubjectID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account no longer exists")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
		}
		return s.mint(pkgauth.AccessTokenPayload{
			SubjectID: user.ID,
			Actor:     pkgauth.ActorStaff,
			Role:      string(user.Role),
		}, nil, user)
	case pkgauth.ActorClient:
		client, err := s.clients.Get(ctx, claims.SubjectID)
		if err != nil {
			typed := pkgerrors.As(err)
			if typed != nil && typed.Code() == pkgerrors.CodeNotFound {
				return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account no longer exists")
			}
			return nil, err
		}
		return s.mint(pkgauth.AccessTokenPayload{
			SubjectID: client.ID,
			Actor:     pkgauth.ActorClient,
		}, client, nil)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown token actor")
	}
}

func (s *service) mint(payload pkgauth.AccessTokenPayload, client *models.Client, user *models.User) (*Session, error) {
	now := s.now().UTC()
	token, err := pkgauth.MintAccessToken(s.jwtCfg, now, payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	session := &Session{
		Token:     token,
		ExpiresAt: now.Add(s.jwtCfg.Expiration()),
		Actor:     payload.Actor,
		SubjectID: payload.SubjectID,
		Client:    client,
		User:      user,
	}
	if payload.Role != "" {
		role := payload.Role
		session.Role = &role
	}
	return session, nil
}

var _ clientAuthenticator = (clients.Service)(nil)
