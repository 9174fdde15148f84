package repository

import (
	"context"
	"testing"
	"time"

	"prepx_backend/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUsageRedis(t *testing.T) (*UsageRedisRepository, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewUsageRedisRepository(rdb), mr
}

func testUsageKey(user, period string) UsageKey {
	start := time.Now().Truncate(time.Hour)
	return UsageKey{
		UserID:      user,
		Feature:     model.FeatureChat,
		PeriodKey:   period,
		PeriodStart: start,
		PeriodEnd:   start.Add(time.Hour),
	}
}

func TestUsageRedis_IncrementIfBelow(t *testing.T) {
	repo, _ := newTestUsageRedis(t)
	ctx := context.Background()
	key := testUsageKey("user-1", "2024-03-01")

	for i := 1; i <= 3; i++ {
		allowed, count, err := repo.IncrementIfBelow(ctx, key, 3)
		require.NoError(t, err)
		assert.True(t, allowed, "call %d", i)
		assert.Equal(t, i, count)
	}

	// 达到上限后拒绝, 计数保持不变
	allowed, count, err := repo.IncrementIfBelow(ctx, key, 3)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 3, count)

	current, err := repo.Current(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 3, current)
}

func TestUsageRedis_KeysAreIsolated(t *testing.T) {
	repo, mr := newTestUsageRedis(t)
	ctx := context.Background()
	key := testUsageKey("user-1", "2024-03-01")

	allowed, _, err := repo.IncrementIfBelow(ctx, key, 1)
	require.NoError(t, err)
	require.True(t, allowed)
	allowed, _, err = repo.IncrementIfBelow(ctx, key, 1)
	require.NoError(t, err)
	require.False(t, allowed)

	nextPeriod := testUsageKey("user-1", "2024-03-02")
	allowed, count, err := repo.IncrementIfBelow(ctx, nextPeriod, 1)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, count)

	other := testUsageKey("user-2", "2024-03-01")
	allowed, count, err = repo.IncrementIfBelow(ctx, other, 1)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, count)

	quiz := key
	quiz.Feature = model.FeatureQuiz
	current, err := repo.Current(ctx, quiz)
	require.NoError(t, err)
	assert.Zero(t, current)

	assert.True(t, mr.Exists("usage:chat:user-1:2024-03-01"))
	assert.True(t, mr.Exists("usage:chat:user-1:2024-03-02"))
	assert.True(t, mr.Exists("usage:chat:user-2:2024-03-01"))
}

func TestUsageRedis_ExpiresAfterPeriod(t *testing.T) {
	repo, mr := newTestUsageRedis(t)
	ctx := context.Background()
	key := testUsageKey("user-1", "2024-03-01")
	redisKey := usageRedisKey(key)

	_, _, err := repo.IncrementIfBelow(ctx, key, 5)
	require.NoError(t, err)
	ttl := mr.TTL(redisKey)
	require.Greater(t, ttl, 24*time.Hour)
	assert.LessOrEqual(t, ttl, 25*time.Hour)

	// 后续递增不刷新过期时间
	_, _, err = repo.IncrementIfBelow(ctx, key, 5)
	require.NoError(t, err)
	assert.Equal(t, ttl, mr.TTL(redisKey))

	mr.FastForward(ttl + time.Second)
	assert.False(t, mr.Exists(redisKey))

	current, err := repo.Current(ctx, key)
	require.NoError(t, err)
	assert.Zero(t, current)
}
