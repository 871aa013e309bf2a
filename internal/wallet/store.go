package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/trustbond/api/internal/cache"
)

type Store interface {
	Load(ctx context.Context, userID string) (*Session, bool, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, userID string) error
	// ConsumeNonce marks a sign-in nonce as used. Only the first caller gets true.
	ConsumeNonce(ctx context.Context, nonce string) (bool, error)
}

// KeyValue is the subset of the redis cache the session store uses.
type KeyValue interface {
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value string, expiration time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

type RedisStore struct {
	kv  KeyValue
	ttl time.Duration
}

func NewRedisStore(kv KeyValue, ttl time.Duration) *RedisStore {
	return &RedisStore{kv: kv, ttl: ttl}
}

func sessionKey(userID string) string {
	return "wallet:session:" + userID
}

func (s *RedisStore) Load(ctx context.Context, userID string) (*Session, bool, error) {
	raw, err := s.kv.Get(ctx, sessionKey(userID))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var stored storedSession
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, false, err
	}

	session := stored.Session
	session.Nonce = stored.Nonce
	return &session, true, nil
}

func (s *RedisStore) Save(ctx context.Context, session *Session) error {
	payload, err := json.Marshal(storedSession{Session: *session, Nonce: session.Nonce})
	if err != nil {
		return err
	}

	return s.kv.Set(ctx, sessionKey(session.UserID), string(payload), s.ttl)
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	return s.kv.Delete(ctx, sessionKey(userID))
}

// ConsumeNonce outlives the session key, so a nonce cannot be replayed after
// the session it belonged to expires.
func (s *RedisStore) ConsumeNonce(ctx context.Context, nonce string) (bool, error) {
	return s.kv.SetNX(ctx, "wallet:nonce:"+nonce, "used", 2*s.ttl)
}

// storedSession keeps the nonce, which is hidden from API responses.
type storedSession struct {
	Session
	Nonce string `json:"nonce,omitempty"`
}
