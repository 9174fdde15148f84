package service

import (
	"context"
	"prepx_backend/internal/model"
	"prepx_backend/internal/repository"
	"prepx_backend/internal/util"
	"prepx_backend/pkg/logger"
	"prepx_backend/pkg/monitoring"
	"sync"
	"time"

	"go.uber.org/zap"
)

// UsageStore 按 key 原子地检查并递增计数
type UsageStore interface {
	IncrementIfBelow(ctx context.Context, key repository.UsageKey, limit int) (bool, int, error)
	Current(ctx context.Context, key repository.UsageKey) (int, error)
}

type FeaturePolicy struct {
	Limit  int              `json:"limit"`
	Period model.PeriodKind `json:"period"`
}

// DefaultUsagePolicies 各功能默认配额
var DefaultUsagePolicies = map[model.FeatureType]FeaturePolicy{
	model.FeatureChat:              {Limit: 50, Period: model.PeriodDaily},
	model.FeatureQuiz:              {Limit: 10, Period: model.PeriodMonthly},
	model.FeaturePathGeneration:    {Limit: 3, Period: model.PeriodMonthly},
	model.FeatureContentGeneration: {Limit: 20, Period: model.PeriodMonthly},
}

type UsageResult struct {
	Feature      model.FeatureType `json:"feature"`
	Allowed      bool              `json:"allowed"`
	CurrentCount int               `json:"currentCount"`
	Limit        int               `json:"limit"`
	Remaining    int               `json:"remaining"`
	ResetAt      *time.Time        `json:"resetAt,omitempty"`
	FailOpen     bool              `json:"-"`
}

type UsageService struct {
	store UsageStore
	now   func() time.Time

	mu       sync.RWMutex
	policies map[model.FeatureType]FeaturePolicy
}

func NewUsageService(store UsageStore, limits map[string]int) *UsageService {
	s := &UsageService{store: store, now: time.Now}
	s.SetLimits(limits)
	return s
}

// WithClock 替换时钟, 用于测试周期切换
func (s *UsageService) WithClock(now func() time.Time) *UsageService {
	s.now = now
	return s
}

// SetLimits 以默认表为基础覆盖上限, 配置热更新时调用
func (s *UsageService) SetLimits(limits map[string]int) {
	policies := make(map[model.FeatureType]FeaturePolicy, len(DefaultUsagePolicies))
	for f, p := range DefaultUsagePolicies {
		if l, ok := limits[string(f)]; ok && l >= 0 {
			p.Limit = l
		}
		policies[f] = p
	}
	s.mu.Lock()
	s.policies = policies
	s.mu.Unlock()
}

func (s *UsageService) policy(feature model.FeatureType) (FeaturePolicy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[feature]
	return p, ok
}

// periodBounds 当前时间所在的自然日或自然月 (UTC)
func periodBounds(kind model.PeriodKind, now time.Time) (key string, start, end time.Time) {
	now = now.UTC()
	if kind == model.PeriodDaily {
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return start.Format(util.DateFormat), start, start.AddDate(0, 0, 1)
	}
	start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start.Format(util.MonthFormat), start, start.AddDate(0, 1, 0)
}

func (s *UsageService) key(userID string, feature model.FeatureType, p FeaturePolicy) repository.UsageKey {
	periodKey, start, end := periodBounds(p.Period, s.now())
	return repository.UsageKey{
		UserID:      userID,
		Feature:     feature,
		PeriodKey:   periodKey,
		PeriodStart: start,
		PeriodEnd:   end,
	}
}

// CheckAndIncrement 未超额时原子递增并放行; 存储不可用时放行 (fail-open)
func (s *UsageService) CheckAndIncrement(ctx context.Context, userID string, feature model.FeatureType) (*UsageResult, error) {
	p, ok := s.policy(feature)
	if !ok {
		return nil, util.ErrUnknownFeature
	}
	key := s.key(userID, feature, p)
	resetAt := key.PeriodEnd

	allowed, count, err := s.store.IncrementIfBelow(ctx, key, p.Limit)
	if err != nil {
		monitoring.UsageDecisions.WithLabelValues(string(feature), "fail_open").Inc()
		logger.WithContext(ctx).Warn("usage store unavailable, allowing request (fail-open)",
			zap.String("user_id", userID),
			zap.String("feature", string(feature)),
			zap.Error(err),
		)
		return &UsageResult{
			Feature:      feature,
			Allowed:      true,
			CurrentCount: 0,
			Limit:        p.Limit,
			Remaining:    p.Limit,
			FailOpen:     true,
		}, nil
	}

	res := &UsageResult{
		Feature:      feature,
		Allowed:      allowed,
		CurrentCount: count,
		Limit:        p.Limit,
		Remaining:    max(p.Limit-count, 0),
	}
	if allowed {
		monitoring.UsageDecisions.WithLabelValues(string(feature), "allowed").Inc()
	} else {
		monitoring.UsageDecisions.WithLabelValues(string(feature), "denied").Inc()
		res.ResetAt = &resetAt
	}
	return res, nil
}

// Summary 各功能当前周期的用量, 不递增
func (s *UsageService) Summary(ctx context.Context, userID string) ([]UsageResult, error) {
	features := []model.FeatureType{
		model.FeatureChat,
		model.FeatureQuiz,
		model.FeaturePathGeneration,
		model.FeatureContentGeneration,
	}

	out := make([]UsageResult, 0, len(features))
	for _, f := range features {
		p, _ := s.policy(f)
		key := s.key(userID, f, p)
		count, err := s.store.Current(ctx, key)
		if err != nil {
			return nil, err
		}
		resetAt := key.PeriodEnd
		out = append(out, UsageResult{
			Feature:      f,
			Allowed:      count < p.Limit,
			CurrentCount: count,
			Limit:        p.Limit,
			Remaining:    max(p.Limit-count, 0),
			ResetAt:      &resetAt,
		})
	}
	return out, nil
}
