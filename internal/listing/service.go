// Package listing は掲載案件の閲覧・管理のサービス層を提供する。
// フィルタパイプラインへのスナップショット供給、アクセス階層の解決、
// 案件の作成・削除の管理操作を担う。
package listing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veritas/cyberhub/internal/catalog"
	"github.com/veritas/cyberhub/internal/metrics"
	"github.com/veritas/cyberhub/internal/model"
	"github.com/veritas/cyberhub/internal/repository"
)

// TierResolver は閲覧者のアクセス階層を解決するインターフェース。
type TierResolver interface {
	TierFor(ctx context.Context, userID string) (catalog.Tier, error)
}

// BrowseResult はフィルタ済み案件一覧の結果。
type BrowseResult struct {
	Listings    []*model.Listing
	LockedCount int
	Tier        catalog.Tier
}

// Service は案件閲覧・管理のサービス。
type Service struct {
	listingRepo repository.ListingRepository
	tiers       TierResolver
	collector   metrics.MetricsCollector
	opts        catalog.Options
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorはnil可（メトリクスを記録しない）。
func NewService(
	listingRepo repository.ListingRepository,
	tiers TierResolver,
	collector metrics.MetricsCollector,
	opts catalog.Options,
) *Service {
	return &Service{
		listingRepo: listingRepo,
		tiers:       tiers,
		collector:   collector,
		opts:        opts,
		now:         time.Now,
	}
}

// Browse はフィルタパイプラインを実行し、閲覧者に表示可能な案件一覧を返す。
// 1. 閲覧者のアクセス階層を解決する（匿名・不明な閲覧者は無料扱い）
// 2. 案件スナップショットを取得する
// 3. 分類・属性フィルタ・並び替え・階層ゲート・ページネーションを適用する
func (s *Service) Browse(ctx context.Context, viewerID string, sel catalog.TaxonomySelection, filter catalog.Filter, pageSize int) (*BrowseResult, error) {
	start := s.now()

	// 1. アクセス階層の解決
	tier := catalog.TierFree
	if viewerID != "" {
		resolved, err := s.tiers.TierFor(ctx, viewerID)
		if err != nil {
			return nil, fmt.Errorf("アクセス階層の解決に失敗: %w", err)
		}
		tier = resolved
	}

	// 2. 案件スナップショットの取得
	listings, err := s.listingRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("案件一覧の取得に失敗: %w", err)
	}

	// 3. フィルタパイプラインの実行
	opts := s.opts
	if pageSize > 0 {
		opts.PageSize = pageSize
	}
	result, err := catalog.Assemble(listings, sel, filter, tier, s.now(), opts)
	if err != nil {
		return nil, err
	}

	if s.collector != nil {
		s.collector.RecordFilterRequest(string(tier))
		s.collector.RecordLockedListings(result.LockedCount)
		s.collector.RecordFilterLatency(s.now().Sub(start))
	}

	return &BrowseResult{
		Listings:    result.Visible,
		LockedCount: result.LockedCount,
		Tier:        tier,
	}, nil
}

// Get は案件詳細を返す。見つからない場合はnilを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Listing, error) {
	return s.listingRepo.FindByID(ctx, id)
}

// CreateInput は案件作成の入力。
type CreateInput struct {
	Type               string
	Category           string
	Title              string
	Description        string
	Institution        string
	Location           string
	Amount             *int64
	Duration           string
	Deadline           *time.Time
	Contact            string
	Amenities          []string
	JobType            string
	FieldOfStudy       string
	AcademicLevel      string
	DistanceFromCampus string
	PostedAt           *time.Time
}

// Create は管理操作として案件を作成する。
// 種別とタイトルは必須。posted_atは未指定の場合は現在時刻を使用する。
func (s *Service) Create(ctx context.Context, input CreateInput) (*model.Listing, error) {
	if !model.ValidListingType(input.Type) {
		return nil, model.NewInvalidListingError(fmt.Sprintf("不明な案件種別です: %s", input.Type))
	}
	if input.Title == "" {
		return nil, model.NewInvalidListingError("タイトルは必須です")
	}

	now := s.now()
	postedAt := now
	if input.PostedAt != nil {
		postedAt = *input.PostedAt
	}

	listing := &model.Listing{
		ID:                 uuid.NewString(),
		Type:               model.ListingType(input.Type),
		Category:           input.Category,
		Title:              input.Title,
		Description:        input.Description,
		Institution:        input.Institution,
		Location:           input.Location,
		Amount:             input.Amount,
		Duration:           input.Duration,
		Deadline:           input.Deadline,
		Contact:            input.Contact,
		Amenities:          input.Amenities,
		JobType:            input.JobType,
		FieldOfStudy:       input.FieldOfStudy,
		AcademicLevel:      input.AcademicLevel,
		DistanceFromCampus: input.DistanceFromCampus,
		PostedAt:           postedAt,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if err := s.listingRepo.Create(ctx, listing); err != nil {
		return nil, fmt.Errorf("案件の作成に失敗: %w", err)
	}

	return listing, nil
}

// Delete は管理操作として案件を削除する。
// 対象が存在しない場合はLISTING_NOT_FOUNDエラーを返す。
func (s *Service) Delete(ctx context.Context, id string) error {
	existing, err := s.listingRepo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("案件の取得に失敗: %w", err)
	}
	if existing == nil {
		return model.NewListingNotFoundError(id)
	}
	if err := s.listingRepo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("案件の削除に失敗: %w", err)
	}
	return nil
}
