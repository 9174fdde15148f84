package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// 计数小于上限时 INCR, 首次创建时设置到周期结束的过期时间
var incrementIfBelowScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
if current >= limit then
  return {0, current}
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIREAT', KEYS[1], ARGV[2])
end
return {1, current}
`)

// UsageRedisRepository 基于 Redis 的计数器, Lua 脚本保证原子性
type UsageRedisRepository struct {
	Redis *redis.Client
}

func NewUsageRedisRepository(rdb *redis.Client) *UsageRedisRepository {
	return &UsageRedisRepository{Redis: rdb}
}

func usageRedisKey(key UsageKey) string {
	return fmt.Sprintf("usage:%s:%s:%s", key.Feature, key.UserID, key.PeriodKey)
}

func (r *UsageRedisRepository) IncrementIfBelow(ctx context.Context, key UsageKey, limit int) (bool, int, error) {
	// 过期时间多保留一天, 避免边界时刻提前失效
	expireAt := key.PeriodEnd.Add(24 * time.Hour).UnixMilli()
	res, err := incrementIfBelowScript.Run(ctx, r.Redis, []string{usageRedisKey(key)}, limit, expireAt).Slice()
	if err != nil {
		return false, 0, err
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("unexpected usage script result: %v", res)
	}
	allowed, _ := res[0].(int64)
	count, _ := res[1].(int64)
	return allowed == 1, int(count), nil
}

func (r *UsageRedisRepository) Current(ctx context.Context, key UsageKey) (int, error) {
	n, err := r.Redis.Get(ctx, usageRedisKey(key)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}
