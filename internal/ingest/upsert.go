package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veritas/cyberhub/internal/model"
	"github.com/veritas/cyberhub/internal/repository"
	"github.com/veritas/cyberhub/internal/security"
)

// ParsedEntry はパートナーフィードからパースした1件の案件候補を表す。
// 取り込みパイプラインの中間形式であり、永続化前にListingに変換される。
type ParsedEntry struct {
	GUID        string
	Link        string
	Title       string
	Description string // 未サニタイズのHTML
	Institution string
	Categories  []string
	PublishedAt *time.Time
}

// ListingUpsertService はパースした案件のUPSERT処理を行う。
// 同一性判定は (source_feed_id, source_guid) を最優先とし、
// GUIDがない場合はsource_urlで判定する。どちらも一致しなければ新規作成する。
type ListingUpsertService struct {
	listingRepo repository.ListingRepository
	sanitizer   security.ContentSanitizerService
	logger      *slog.Logger
}

// NewListingUpsertService はListingUpsertServiceの新しいインスタンスを生成する。
func NewListingUpsertService(
	listingRepo repository.ListingRepository,
	sanitizer security.ContentSanitizerService,
	logger *slog.Logger,
) *ListingUpsertService {
	return &ListingUpsertService{
		listingRepo: listingRepo,
		sanitizer:   sanitizer,
		logger:      logger,
	}
}

// UpsertEntries はパース済み案件を一括でUPSERTし、(新規件数, 更新件数)を返す。
// タイトルがない、またはGUID・リンクの両方がない案件はスキップする。
// 1件の失敗は他の案件の取り込みを止めない。
func (s *ListingUpsertService) UpsertEntries(ctx context.Context, feed *model.PartnerFeed, entries []ParsedEntry) (int, int, error) {
	inserted := 0
	updated := 0

	for _, entry := range entries {
		if entry.Title == "" || (entry.GUID == "" && entry.Link == "") {
			s.logger.Warn("必須項目が不足しているため案件をスキップします",
				slog.String("feed_id", feed.ID),
				slog.String("title", entry.Title),
				slog.String("link", entry.Link),
			)
			continue
		}

		existing, err := s.findExisting(ctx, feed.ID, entry)
		if err != nil {
			s.logger.Error("既存案件の検索に失敗しました",
				slog.String("feed_id", feed.ID),
				slog.String("guid", entry.GUID),
				slog.String("error", err.Error()),
			)
			continue
		}

		if existing != nil {
			s.applyEntry(existing, feed, entry)
			if err := s.listingRepo.Update(ctx, existing); err != nil {
				s.logger.Error("案件の更新に失敗しました",
					slog.String("listing_id", existing.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			updated++
			continue
		}

		listing := s.newListing(feed, entry)
		if err := s.listingRepo.Create(ctx, listing); err != nil {
			s.logger.Error("案件の作成に失敗しました",
				slog.String("feed_id", feed.ID),
				slog.String("guid", entry.GUID),
				slog.String("error", err.Error()),
			)
			continue
		}
		inserted++
	}

	if inserted+updated == 0 && len(entries) > 0 {
		return 0, 0, fmt.Errorf("全%d件の案件の取り込みに失敗しました", len(entries))
	}

	return inserted, updated, nil
}

// findExisting は同一性判定を行い、既存案件があれば返す。
// (source_feed_id, source_guid) が第1優先、source_urlが第2優先。
func (s *ListingUpsertService) findExisting(ctx context.Context, feedID string, entry ParsedEntry) (*model.Listing, error) {
	if entry.GUID != "" {
		listing, err := s.listingRepo.FindBySourceGUID(ctx, feedID, entry.GUID)
		if err != nil {
			return nil, err
		}
		if listing != nil {
			return listing, nil
		}
	}
	if entry.Link != "" {
		return s.listingRepo.FindBySourceURL(ctx, entry.Link)
	}
	return nil, nil
}

// newListing はパース済み案件から新規Listingを構築する。
// posted_atは公開日時があればそれを、なければ取り込み時刻を使用する。
func (s *ListingUpsertService) newListing(feed *model.PartnerFeed, entry ParsedEntry) *model.Listing {
	now := time.Now()
	postedAt := now
	if entry.PublishedAt != nil {
		postedAt = *entry.PublishedAt
	}

	listing := &model.Listing{
		ID:           uuid.NewString(),
		Type:         InferListingType(entry.Categories, feed.DefaultType),
		Title:        entry.Title,
		Description:  s.sanitizer.Sanitize(entry.Description),
		Institution:  entry.Institution,
		SourceFeedID: feed.ID,
		SourceGUID:   entry.GUID,
		SourceURL:    entry.Link,
		PostedAt:     postedAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if listing.Institution == "" {
		listing.Institution = feed.Name
	}
	if len(entry.Categories) > 0 {
		listing.Category = entry.Categories[0]
	}
	return listing
}

// applyEntry は既存案件にパース済み案件の内容を上書きする。
// posted_atは作成後不変のため更新しない。
func (s *ListingUpsertService) applyEntry(listing *model.Listing, feed *model.PartnerFeed, entry ParsedEntry) {
	listing.Title = entry.Title
	listing.Description = s.sanitizer.Sanitize(entry.Description)
	listing.Type = InferListingType(entry.Categories, feed.DefaultType)
	if entry.Institution != "" {
		listing.Institution = entry.Institution
	}
	if entry.GUID != "" {
		listing.SourceGUID = entry.GUID
	}
	if entry.Link != "" {
		listing.SourceURL = entry.Link
	}
	if len(entry.Categories) > 0 {
		listing.Category = entry.Categories[0]
	}
	listing.UpdatedAt = time.Now()
}

// typeKeywords はフィードのカテゴリタグから案件種別を推定するためのキーワード表。
var typeKeywords = map[string]model.ListingType{
	"job":           model.ListingTypeJob,
	"jobs":          model.ListingTypeJob,
	"remote":        model.ListingTypeJob,
	"vacancy":       model.ListingTypeJob,
	"bursary":       model.ListingTypeBursary,
	"bursaries":     model.ListingTypeBursary,
	"scholarship":   model.ListingTypeScholarship,
	"scholarships":  model.ListingTypeScholarship,
	"internship":    model.ListingTypeInternship,
	"internships":   model.ListingTypeInternship,
	"intern":        model.ListingTypeInternship,
	"hostel":        model.ListingTypeHostel,
	"hostels":       model.ListingTypeHostel,
	"accommodation": model.ListingTypeHostel,
	"government":    model.ListingTypeGovernment,
	"e-citizen":     model.ListingTypeGovernment,
}

// InferListingType はフィードのカテゴリタグから案件種別を推定する。
// 既知のキーワードに一致するタグがない場合はfallbackを返す。
func InferListingType(categories []string, fallback model.ListingType) model.ListingType {
	for _, c := range categories {
		if t, ok := typeKeywords[strings.ToLower(strings.TrimSpace(c))]; ok {
			return t
		}
	}
	return fallback
}
