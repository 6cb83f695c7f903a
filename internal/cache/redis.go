// Package cache はRedisクライアントの生成とプラン設定のキャッシュを提供する。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veritas/cyberhub/internal/model"
)

// NewRedisClient はredisURLをパースして接続を確認したクライアントを返す。
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// PlanCache はプラン設定のTTL付きキャッシュのインターフェース。
type PlanCache interface {
	// Get はキャッシュからプラン設定を取得する。
	// ミスまたは障害時は(nil, false)を返し、呼び出し側はDBにフォールバックする。
	Get(ctx context.Context, userID string) (*model.PlanConfig, bool)
	// Set はプラン設定をキャッシュに書き込む。障害は無視される。
	Set(ctx context.Context, plan *model.PlanConfig)
	// Invalidate は指定ユーザーのキャッシュエントリを削除する。
	Invalidate(ctx context.Context, userID string)
}

// RedisPlanCache はRedisを使用したPlanCacheの実装。
type RedisPlanCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPlanCache はRedisPlanCacheを生成する。
func NewRedisPlanCache(client *redis.Client, ttl time.Duration) *RedisPlanCache {
	return &RedisPlanCache{client: client, ttl: ttl}
}

// planKey はプランキャッシュのキーを生成する。
func planKey(userID string) string {
	return "plan:" + userID
}

// Get はキャッシュからプラン設定を取得する。
// キャッシュはあくまで高速化であり、Redisの障害で閲覧が止まってはならない。
func (c *RedisPlanCache) Get(ctx context.Context, userID string) (*model.PlanConfig, bool) {
	data, err := c.client.Get(ctx, planKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		// 障害はミス扱い。呼び出し側がDBにフォールバックする
		slog.Warn("plan cache read failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	var plan model.PlanConfig
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, false
	}
	return &plan, true
}

// Set はプラン設定をキャッシュに書き込む。
func (c *RedisPlanCache) Set(ctx context.Context, plan *model.PlanConfig) {
	data, err := json.Marshal(plan)
	if err != nil {
		return
	}
	c.client.Set(ctx, planKey(plan.UserID), data, c.ttl)
}

// Invalidate は指定ユーザーのキャッシュエントリを削除する。
func (c *RedisPlanCache) Invalidate(ctx context.Context, userID string) {
	c.client.Del(ctx, planKey(userID))
}
