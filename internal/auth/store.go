package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

// TokenStore persists the current token. Load returns nil, nil when empty.
type TokenStore interface {
	Load(ctx context.Context) (*oauth2.Token, error)
	Save(ctx context.Context, tok *oauth2.Token) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the token in process.
type MemoryStore struct {
	mu  sync.RWMutex
	tok *oauth2.Token
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load(context.Context) (*oauth2.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tok, nil
}

func (m *MemoryStore) Save(_ context.Context, tok *oauth2.Token) error {
	m.mu.Lock()
	m.tok = tok
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	m.tok = nil
	m.mu.Unlock()
	return nil
}

// RedisStore shares the token between replicas. Entries expire with the token.
type RedisStore struct {
	rdb redis.UniversalClient
	key string
}

func NewRedisStore(rdb redis.UniversalClient, key string) *RedisStore {
	if key == "" {
		key = "document-extractor:auth:token"
	}
	return &RedisStore{rdb: rdb, key: key}
}

type storedToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type,omitempty"`
	Expiry      time.Time `json:"expiry,omitempty"`
}

func (s *RedisStore) Load(ctx context.Context) (*oauth2.Token, error) {
	b, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get token: %w", err)
	}
	var st storedToken
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode cached token: %w", err)
	}
	return &oauth2.Token{AccessToken: st.AccessToken, TokenType: st.TokenType, Expiry: st.Expiry}, nil
}

func (s *RedisStore) Save(ctx context.Context, tok *oauth2.Token) error {
	ttl := time.Duration(0)
	if !tok.Expiry.IsZero() {
		ttl = time.Until(tok.Expiry)
		if ttl <= 0 {
			return nil
		}
	}
	b, err := json.Marshal(storedToken{AccessToken: tok.AccessToken, TokenType: tok.TokenType, Expiry: tok.Expiry})
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set token: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del token: %w", err)
	}
	return nil
}
