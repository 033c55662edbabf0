package repositories

import (
	"circle-hub/domain"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisPresenceStore mirrors presence into redis so that other services can read
// who is online. Entries expire after ttl, so a crashed hub cannot leave users online forever.
type RedisPresenceStore struct {
	client *redis.Client
	log    *slog.Logger
	ttl    time.Duration
}

func NewRedisPresenceStore(addr, password string, db int, ttl time.Duration, log *slog.Logger) *RedisPresenceStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisPresenceStore{client: client, log: log, ttl: ttl}
}

func redisPresenceKey(userID string) string {
	return fmt.Sprintf("circle-hub:presence:%s", userID)
}

type redisPresence struct {
	UserID   string    `json:"user_id"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
}

func (r *RedisPresenceStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisPresenceStore) SetPresence(ctx context.Context, presence domain.Presence) error {
	data, err := json.Marshal(redisPresence{
		UserID:   presence.UserID,
		Online:   presence.Online,
		LastSeen: presence.LastSeen,
	})
	if err != nil {
		return err
	}
	if err = r.client.Set(ctx, redisPresenceKey(presence.UserID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis presence of %s: %w", presence.UserID, err)
	}
	return nil
}

func (r *RedisPresenceStore) Presence(ctx context.Context, userID string) (domain.Presence, bool, error) {
	data, err := r.client.Get(ctx, redisPresenceKey(userID)).Bytes()
	if err == redis.Nil {
		return domain.Presence{}, false, nil
	}
	if err != nil {
		return domain.Presence{}, false, err
	}
	var p redisPresence
	if err = json.Unmarshal(data, &p); err != nil {
		return domain.Presence{}, false, err
	}
	return domain.Presence{UserID: p.UserID, Online: p.Online, LastSeen: p.LastSeen}, true, nil
}

func (r *RedisPresenceStore) Close() error {
	return r.client.Close()
}
