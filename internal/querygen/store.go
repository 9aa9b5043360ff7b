package querygen

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultSessionTTL = 24 * time.Hour

// sessionSnapshot is the persisted form of one session. It holds only what
// survives a restart: parameters, the retained turns, and the latest
// extraction result. Orchestrator status is transient and not stored.
type sessionSnapshot struct {
	PlatformID     string           `json:"platform_id"`
	VariationCount int              `json:"variation_count"`
	Turns          []Turn           `json:"turns"`
	Result         ExtractionResult `json:"result"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// SessionStore persists session snapshots between requests.
type SessionStore interface {
	Save(ctx context.Context, sessionID string, snap sessionSnapshot) error
	Load(ctx context.Context, sessionID string) (sessionSnapshot, bool, error)
	Delete(ctx context.Context, sessionID string) error
}

// RedisSessionStore keeps session snapshots in Redis with a TTL, refreshed
// on every save.
type RedisSessionStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

// NewRedisSessionStore creates a Redis-backed session store.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if client == nil {
		panic("querygen: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisSessionStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("querygen.internal.querygen.store"),
	}
}

func (s *RedisSessionStore) Save(ctx context.Context, sessionID string, snap sessionSnapshot) error {
	ctx, span := s.tracer.Start(ctx, "querygen.save_session")
	defer span.End()

	data, err := json.Marshal(snap)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("querygen: failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(sessionID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("querygen: failed to persist session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Load(ctx context.Context, sessionID string) (sessionSnapshot, bool, error) {
	ctx, span := s.tracer.Start(ctx, "querygen.load_session")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return sessionSnapshot{}, false, nil
		}
		span.RecordError(err)
		return sessionSnapshot{}, false, fmt.Errorf("querygen: failed to load session: %w", err)
	}

	var snap sessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		span.RecordError(err)
		return sessionSnapshot{}, false, fmt.Errorf("querygen: failed to decode session: %w", err)
	}
	return snap, true, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "querygen.delete_session")
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("querygen: failed to delete session: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}
