package invoicing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"

	"github.com/coraldesk/coraldesk-backend/pkg/redis"
)

// ErrNoToken means the accounting connection has not been authorized yet.
var ErrNoToken = errors.New("no accounting token stored")

// TokenStore persists the OAuth2 token set outside the relational database.
type TokenStore interface {
	Load(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, token *oauth2.Token) error
	Clear(ctx context.Context) error
}

type redisTokenStore struct {
	client *redis.Client
	key    string
}

// NewRedisTokenStore stores the token set as JSON under a namespaced key.
func NewRedisTokenStore(client *redis.Client) (TokenStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &redisTokenStore{client: client, key: redis.TokenKey("accounting")}, nil
}

func (s *redisTokenStore) Load(ctx context.Context) (*oauth2.Token, error) {
	raw, err := s.client.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("load accounting token: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		return nil, fmt.Errorf("decode accounting token: %w", err)
	}
	return &token, nil
}

func (s *redisTokenStore) Save(ctx context.Context, token *oauth2.Token) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encode accounting token: %w", err)
	}
	if err := s.client.Set(ctx, s.key, string(raw), 0); err != nil {
		return fmt.Errorf("save accounting token: %w", err)
	}
	return nil
}

func (s *redisTokenStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key); err != nil {
		return fmt.Errorf("clear accounting token: %w", err)
	}
	return nil
}
