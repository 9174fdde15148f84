package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"prepx_backend/internal/model"
	"prepx_backend/internal/repository"
	"prepx_backend/internal/util"
	"prepx_backend/pkg/monitoring"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func newTestUsageService(t *testing.T, limits map[string]int, now *time.Time) (*UsageService, *repository.UsageRepository) {
	repo := repository.NewUsageRepository(setupTestDB(t))
	return NewUsageService(repo, limits).WithClock(fixedClock(now)), repo
}

func TestCheckAndIncrement_LimitSequence(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	svc, _ := newTestUsageService(t, map[string]int{"quiz": 3}, &now)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := svc.CheckAndIncrement(ctx, "user-1", model.FeatureQuiz)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, i, res.CurrentCount)
		assert.Equal(t, 3-i, res.Remaining)
		assert.Nil(t, res.ResetAt)
	}

	res, err := svc.CheckAndIncrement(ctx, "user-1", model.FeatureQuiz)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 3, res.CurrentCount)
	assert.Equal(t, 0, res.Remaining)
	require.NotNil(t, res.ResetAt)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), *res.ResetAt)
}

func TestCheckAndIncrement_DefaultLimits(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	svc, _ := newTestUsageService(t, nil, &now)

	res, err := svc.CheckAndIncrement(context.Background(), "user-1", model.FeaturePathGeneration)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Limit)
	assert.Equal(t, 2, res.Remaining)
}

func TestCheckAndIncrement_UsersAndFeaturesIsolated(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	svc, _ := newTestUsageService(t, map[string]int{"quiz": 1, "chat": 1}, &now)
	ctx := context.Background()

	res, err := svc.CheckAndIncrement(ctx, "user-1", model.FeatureQuiz)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = svc.CheckAndIncrement(ctx, "user-2", model.FeatureQuiz)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = svc.CheckAndIncrement(ctx, "user-1", model.FeatureChat)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = svc.CheckAndIncrement(ctx, "user-1", model.FeatureQuiz)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestCheckAndIncrement_DailyRollover(t *testing.T) {
	now := time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC)
	svc, _ := newTestUsageService(t, map[string]int{"chat": 2}, &now)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.CheckAndIncrement(ctx, "user-1", model.FeatureChat)
		require.NoError(t, err)
	}
	res, err := svc.CheckAndIncrement(ctx, "user-1", model.FeatureChat)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), *res.ResetAt)

	now = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	res, err = svc.CheckAndIncrement(ctx, "user-1", model.FeatureChat)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.CurrentCount)
}

func TestCheckAndIncrement_MonthlyRollover(t *testing.T) {
	now := time.Date(2024, 12, 31, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestUsageService(t, map[string]int{"quiz": 1}, &now)
	ctx := context.Background()

	res, err := svc.CheckAndIncrement(ctx, "user-1", model.FeatureQuiz)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = svc.CheckAndIncrement(ctx, "user-1", model.FeatureQuiz)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *res.ResetAt)

	now = time.Date(2025, 1, 1, 0, 0, 1, 0, time.UTC)
	res, err = svc.CheckAndIncrement(ctx, "user-1", model.FeatureQuiz)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.CurrentCount)
}

func TestCheckAndIncrement_NonUTCClock(t *testing.T) {
	// 北京时间 2 月 1 日 07:00 仍属于 UTC 的 1 月 31 日
	shanghai := time.FixedZone("CST", 8*3600)
	now := time.Date(2024, 2, 1, 7, 0, 0, 0, shanghai)
	svc, repo := newTestUsageService(t, map[string]int{"chat": 5}, &now)

	_, err := svc.CheckAndIncrement(context.Background(), "user-1", model.FeatureChat)
	require.NoError(t, err)

	var rec model.UsageRecord
	require.NoError(t, repo.DB.First(&rec).Error)
	assert.Equal(t, "2024-01-31", rec.PeriodKey)
}

func TestCheckAndIncrement_UnknownFeature(t *testing.T) {
	now := time.Now()
	svc, _ := newTestUsageService(t, nil, &now)

	_, err := svc.CheckAndIncrement(context.Background(), "user-1", model.FeatureType("video"))
	assert.ErrorIs(t, err, util.ErrUnknownFeature)
}

type failingUsageStore struct{}

func (failingUsageStore) IncrementIfBelow(ctx context.Context, key repository.UsageKey, limit int) (bool, int, error) {
	return false, 0, errors.New("connection refused")
}

func (failingUsageStore) Current(ctx context.Context, key repository.UsageKey) (int, error) {
	return 0, errors.New("connection refused")
}

func TestCheckAndIncrement_FailOpen(t *testing.T) {
	svc := NewUsageService(failingUsageStore{}, map[string]int{"quiz": 10})
	counter := monitoring.UsageDecisions.WithLabelValues("quiz", "fail_open")
	before := testutil.ToFloat64(counter)

	res, err := svc.CheckAndIncrement(context.Background(), "user-1", model.FeatureQuiz)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.True(t, res.FailOpen)
	assert.Equal(t, 0, res.CurrentCount)
	assert.Equal(t, 10, res.Remaining)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestCheckAndIncrement_ConcurrentCallsNeverExceedLimit(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	svc, repo := newTestUsageService(t, map[string]int{"content_generation": 5}, &now)
	ctx := context.Background()

	const callers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.CheckAndIncrement(ctx, "user-1", model.FeatureContentGeneration)
			if !assert.NoError(t, err) {
				return
			}
			if res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, allowed)

	var records []model.UsageRecord
	require.NoError(t, repo.DB.Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, 5, records[0].Count)
}

func TestUsageSummary_DoesNotIncrement(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	svc, _ := newTestUsageService(t, nil, &now)
	ctx := context.Background()

	_, err := svc.CheckAndIncrement(ctx, "user-1", model.FeatureChat)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		summary, err := svc.Summary(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, summary, 4)
		assert.Equal(t, model.FeatureChat, summary[0].Feature)
		assert.Equal(t, 1, summary[0].CurrentCount)
		assert.Equal(t, 49, summary[0].Remaining)
		assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), *summary[0].ResetAt)
		assert.Equal(t, 0, summary[1].CurrentCount)
	}
}

func TestSetLimits_AppliesToNextCheck(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	svc, _ := newTestUsageService(t, map[string]int{"quiz": 5}, &now)
	ctx := context.Background()

	_, err := svc.CheckAndIncrement(ctx, "user-1", model.FeatureQuiz)
	require.NoError(t, err)

	svc.SetLimits(map[string]int{"quiz": 1})
	res, err := svc.CheckAndIncrement(ctx, "user-1", model.FeatureQuiz)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 1, res.Limit)
}
