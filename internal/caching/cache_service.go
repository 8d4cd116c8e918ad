package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"lexdesk/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "lexdesk"

// SubscriptionTTL bounds how stale a cached subscription can be if an
// invalidation is lost.
const SubscriptionTTL = 5 * time.Minute

type CacheService interface {
	GetSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	SetSubscription(ctx context.Context, sub *models.Subscription, ttl time.Duration) error
	DeleteSubscription(ctx context.Context, userIDs ...uuid.UUID) error

	// MarkOnce records key and reports whether this call was the first to do so.
	MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, key string) error

	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client redis.UniversalClient
}

func NewRedisCacheService(addr, password string, db int) CacheService {
	// Accept redis://host:port as well as host:port
	parsedAddr := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://")

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		log.Printf("WARN: Redis ping failed on initialization: %v (address: %s)", pingErr, parsedAddr)
	} else {
		log.Printf("DEBUG: Redis connection established at %s", parsedAddr)
	}

	return &redisCacheService{client: client}
}

// NewCacheServiceFromClient wraps an existing client.
func NewCacheServiceFromClient(client redis.UniversalClient) CacheService {
	return &redisCacheService{client: client}
}

func subscriptionKey(userID uuid.UUID) string {
	return fmt.Sprintf("%s:subscription:%s", keyPrefix, userID.String())
}

func onceKey(key string) string {
	return fmt.Sprintf("%s:once:%s", keyPrefix, key)
}

func (r *redisCacheService) GetSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	data, err := r.client.Get(ctx, subscriptionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var sub models.Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *redisCacheService) SetSubscription(ctx context.Context, sub *models.Subscription, ttl time.Duration) error {
	data, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, subscriptionKey(sub.UserID), data, ttl).Err()
}

func (r *redisCacheService) DeleteSubscription(ctx context.Context, userIDs ...uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, subscriptionKey(id))
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *redisCacheService) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, onceKey(key), time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

func (r *redisCacheService) Forget(ctx context.Context, key string) error {
	return r.client.Del(ctx, onceKey(key)).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
