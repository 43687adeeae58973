package botsession

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "coined:bot:session:"

// RedisStore shares login state between bot replicas. Entries expire with
// the key TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, chatID string) (Session, error) {
	raw, err := s.client.Get(ctx, s.key(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, nil
	}
	if err != nil {
		return Session{}, errors.Wrap(err, "get bot session")
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return Session{}, errors.Wrap(err, "decode bot session")
	}
	return session, nil
}

func (s *RedisStore) Set(ctx context.Context, chatID string, session Session) error {
	if session.State == StateIdle {
		return s.Clear(ctx, chatID)
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "encode bot session")
	}
	if err := s.client.Set(ctx, s.key(chatID), raw, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "set bot session")
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, chatID string) error {
	if err := s.client.Del(ctx, s.key(chatID)).Err(); err != nil {
		return errors.Wrap(err, "clear bot session")
	}
	return nil
}

func (s *RedisStore) key(chatID string) string {
	return keyPrefix + chatID
}
