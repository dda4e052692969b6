package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "todolist:idempotency:"

// Deduplicator 基于 Redis SETNX 记录客户端的 Idempotency-Key。
//
// 键按用户隔离，不同用户使用相同的 key 互不影响。nil 或未配置 Redis 时不拦截任何请求。
type Deduplicator struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewDeduplicator(rdb *redis.Client, ttl time.Duration) *Deduplicator {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Deduplicator{
		rdb: rdb,
		ttl: ttl,
	}
}

// Claim 占用 (userID, key)。返回 true 表示该 key 已被使用过。
func (d *Deduplicator) Claim(ctx context.Context, userID uint, key string) (bool, error) {
	if d == nil || d.rdb == nil || key == "" {
		return false, nil
	}
	ok, err := d.rdb.SetNX(ctx, redisKey(userID, key), "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup setnx: %w", err)
	}
	return !ok, nil
}

// Release 释放 key，用于请求失败后允许客户端重试。
func (d *Deduplicator) Release(ctx context.Context, userID uint, key string) error {
	if d == nil || d.rdb == nil || key == "" {
		return nil
	}
	if err := d.rdb.Del(ctx, redisKey(userID, key)).Err(); err != nil {
		return fmt.Errorf("dedup del: %w", err)
	}
	return nil
}

// Ping 检查 Redis 连通性，未启用时直接返回 nil。
func (d *Deduplicator) Ping(ctx context.Context) error {
	if d == nil || d.rdb == nil {
		return nil
	}
	return d.rdb.Ping(ctx).Err()
}

func redisKey(userID uint, key string) string {
	sum := sha256.Sum256([]byte(key))
	return keyPrefix + strconv.FormatUint(uint64(userID), 10) + ":" + hex.EncodeToString(sum[:])
}
