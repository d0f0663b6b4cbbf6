package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"drug-crossref/internal/infrastructure/config"
	"drug-crossref/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisStore 以 Redis 保存已解析的名稱，讓多次執行共用
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore 建立 Redis 快取並測試連線
func NewRedisStore(ctx context.Context, cfg config.CacheConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// 測試連接
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client: client,
		prefix: cfg.Redis.KeyPrefix,
		ttl:    cfg.TTL,
	}, nil
}

// Get 獲取緩存
func (s *RedisStore) Get(ctx context.Context, kind common.FieldKind, raw string) (common.ResolvedName, error) {
	key := s.key(kind, raw)
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			common.LogCacheMiss("redis", key)
			return common.ResolvedName{}, common.ErrCacheMiss
		}
		return common.ResolvedName{}, fmt.Errorf("failed to get cache: %w", err)
	}

	var name common.ResolvedName
	if err := json.Unmarshal(data, &name); err != nil {
		return common.ResolvedName{}, fmt.Errorf("failed to unmarshal cache: %w", err)
	}
	common.LogCacheHit("redis", key)
	return name, nil
}

// Set 設置緩存
func (s *RedisStore) Set(ctx context.Context, kind common.FieldKind, raw string, name common.ResolvedName) error {
	data, err := json.Marshal(name)
	if err != nil {
		return fmt.Errorf("failed to marshal name: %w", err)
	}
	if err := s.client.Set(ctx, s.key(kind, raw), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Close 關閉連線
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(kind common.FieldKind, raw string) string {
	if s.prefix == "" {
		return generateKey(kind, raw)
	}
	return s.prefix + ":" + generateKey(kind, raw)
}

// New 依設定選擇 Redis 或記憶體快取；Redis 連不上時退回記憶體快取，停用時回傳 nil
func New(ctx context.Context, cfg config.CacheConfig) Store {
	if cfg.Redis.Enabled {
		store, err := NewRedisStore(ctx, cfg)
		if err == nil {
			common.LogInfo("使用 Redis 名稱快取")
			return store
		}
		common.LogWarn("Redis 無法使用，改用記憶體快取", zap.Error(err))
	}
	if m := NewManager(cfg); m != nil {
		return m
	}
	return nil
}
