// Package subscription はサブスクリプションプランの解決とアクセス階層の導出を提供する。
package subscription

import (
	"context"
	"time"

	"github.com/veritas/cyberhub/internal/cache"
	"github.com/veritas/cyberhub/internal/catalog"
	"github.com/veritas/cyberhub/internal/model"
	"github.com/veritas/cyberhub/internal/repository"
)

// Service はプラン設定の取得とアクセス階層の導出を行うサービス。
// プラン設定はRedisキャッシュを経由して取得し、ミス時にDBへ
// フォールバックする。
type Service struct {
	planRepo repository.PlanRepository
	cache    cache.PlanCache
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// cacheがnilの場合はキャッシュなしで動作する。
func NewService(planRepo repository.PlanRepository, planCache cache.PlanCache) *Service {
	return &Service{
		planRepo: planRepo,
		cache:    planCache,
		now:      time.Now,
	}
}

// PlanFor は指定ユーザーのプラン設定を取得する。
// プラン未登録のユーザーにはnilを返す（呼び出し側で無料扱い）。
func (s *Service) PlanFor(ctx context.Context, userID string) (*model.PlanConfig, error) {
	if userID == "" {
		return nil, nil
	}

	if s.cache != nil {
		if plan, ok := s.cache.Get(ctx, userID); ok {
			return plan, nil
		}
	}

	plan, err := s.planRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if plan != nil && s.cache != nil {
		s.cache.Set(ctx, plan)
	}

	return plan, nil
}

// TierFor は指定ユーザーのアクセス階層を解決する。
// プランが取得できない場合（未登録・匿名閲覧者）と有効期限が
// 切れている場合は安全側に倒して無料階層を返す。新着案件が
// 誤って漏れることはあってはならない。
func (s *Service) TierFor(ctx context.Context, userID string) (catalog.Tier, error) {
	plan, err := s.PlanFor(ctx, userID)
	if err != nil {
		return catalog.TierFree, err
	}
	return catalog.TierFromPlan(plan, s.now()), nil
}

// UpdatePlan はプラン設定を保存し、キャッシュを無効化する。
func (s *Service) UpdatePlan(ctx context.Context, plan *model.PlanConfig) error {
	if err := s.planRepo.Upsert(ctx, plan); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, plan.UserID)
	}
	return nil
}
