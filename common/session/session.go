// Package session implements C1: per-sender dialogue session state, the
// processing lock that serializes dialogue turns, and the sliding-
// window rate limiter — all backed by Redis sorted sets and strings.
//
// Grounded on stock/cache.go for the Redis client wiring shape, and on
// original_source/servicio_bot_whatsapp/services/{session_manager,rate_limiter}.py
// for the exact key scheme and pipeline sequence.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionPrefix    = "session:"
	processingPrefix = "processing:"
	rateLimitPrefix  = "ratelimit:"

	sessionTTL    = 1 * time.Hour
	processingTTL = 5 * time.Minute
)

// ErrProcessingLocked names the case where another turn already holds the
// sender's processing lock. TryAcquireProcessing reports that case as
// (false, nil) and does not return this error.
var ErrProcessingLocked = errors.New("session: processing lock held")

// Data is the mutable session payload for one chat sender.
type Data struct {
	LastSeen        time.Time         `json:"last_seen"`
	CurrentOrder    map[string]string `json:"current_order_data"`
	AwaitingMore    bool              `json:"awaiting_more_info"`
}

// Store is the C1 contract: session get/save, the processing lock, and
// the rate limiter, all keyed by chat-sender-id.
type Store struct {
	client *redis.Client
	log    *slog.Logger
}

func NewStore(addr string, log *slog.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Store{client: client, log: log}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Ping reports whether the backing Redis store is reachable, for
// liveness/health endpoints.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get loads the session for sender, returning an empty one if absent.
func (s *Store) Get(ctx context.Context, sender string) (Data, error) {
	raw, err := s.client.Get(ctx, sessionPrefix+sender).Bytes()
	if errors.Is(err, redis.Nil) {
		return Data{CurrentOrder: map[string]string{}}, nil
	}
	if err != nil {
		return Data{}, fmt.Errorf("get session: %w", err)
	}

	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return Data{}, fmt.Errorf("unmarshal session: %w", err)
	}
	if d.CurrentOrder == nil {
		d.CurrentOrder = map[string]string{}
	}
	return d, nil
}

// Save persists the session with a refreshed TTL.
func (s *Store) Save(ctx context.Context, sender string, d Data) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.client.Set(ctx, sessionPrefix+sender, raw, sessionTTL).Err()
}

// Clear removes the session entirely (explicit clear after confirmation).
func (s *Store) Clear(ctx context.Context, sender string) error {
	return s.client.Del(ctx, sessionPrefix+sender).Err()
}

// TryAcquireProcessing is the atomic set-if-absent serialization point
// from spec §4.1: at most one dialogue turn per sender is in flight.
// Store failures here are treated as "lock not acquired" (fail-closed)
// to avoid double-processing the same message.
func (s *Store) TryAcquireProcessing(ctx context.Context, sender string) (bool, error) {
	ok, err := s.client.SetNX(ctx, processingPrefix+sender, "1", processingTTL).Result()
	if err != nil {
		s.log.Error("processing lock store error, treating as not acquired", slog.Any("error", err))
		return false, err
	}
	return ok, nil
}

// ReleaseProcessing releases the lock so the next turn for sender can run.
func (s *Store) ReleaseProcessing(ctx context.Context, sender string) error {
	return s.client.Del(ctx, processingPrefix+sender).Err()
}

// Allow applies the sliding-window rate limit: reject when the sender
// already has maxRequests timestamps within the last window. Store
// failures fail OPEN (log + allow) to preserve availability.
func (s *Store) Allow(ctx context.Context, sender string, maxRequests int, window time.Duration) bool {
	key := rateLimitPrefix + sender
	now := time.Now()
	cutoff := now.Add(-window).UnixMilli()

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", cutoff))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: now.UnixNano()})
	pipe.Expire(ctx, key, window+time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn("rate limiter store error, failing open", slog.Any("error", err))
		return true
	}

	return countCmd.Val() < int64(maxRequests)
}
