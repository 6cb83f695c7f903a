package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/veritas/cyberhub/internal/metrics"
	"github.com/veritas/cyberhub/internal/model"
	"github.com/veritas/cyberhub/internal/repository"
)

// EntryUpserter はパース済み案件のUPSERT処理のインターフェース。
type EntryUpserter interface {
	UpsertEntries(ctx context.Context, feed *model.PartnerFeed, entries []ParsedEntry) (int, int, error)
}

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Fetcher は個別パートナーフィードのHTTPフェッチとパースを行う。
// ETag/Last-Modifiedを使用した条件付きGET、SSRF検証、
// gofeedによるパース、ListingUpsertServiceによる案件保存を実行する。
type Fetcher struct {
	feedRepo        repository.PartnerFeedRepository
	upserter        EntryUpserter
	ssrfGuard       SSRFValidator
	logger          *slog.Logger
	timeout         time.Duration
	maxBodySize     int64
	successInterval time.Duration
	collector       metrics.MetricsCollector
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
// successIntervalはフェッチ成功時の次回フェッチまでの間隔。
func NewFetcher(
	feedRepo repository.PartnerFeedRepository,
	upserter EntryUpserter,
	ssrfGuard SSRFValidator,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
	successInterval time.Duration,
) *Fetcher {
	if successInterval <= 0 {
		successInterval = 30 * time.Minute
	}
	return &Fetcher{
		feedRepo:        feedRepo,
		upserter:        upserter,
		ssrfGuard:       ssrfGuard,
		logger:          logger,
		timeout:         timeout,
		maxBodySize:     maxBodySize,
		successInterval: successInterval,
	}
}

// SetMetricsCollector は取り込みメトリクスの記録先を設定する。
// nilのままの場合、メトリクスは記録されない。
func (f *Fetcher) SetMetricsCollector(collector metrics.MetricsCollector) {
	f.collector = collector
}

// Fetch はパートナーフィードをフェッチし、結果に応じてフィード状態を更新する。
// FeedFetchServiceインターフェースを実装する。
func (f *Fetcher) Fetch(ctx context.Context, feed *model.PartnerFeed) error {
	start := time.Now()

	// SSRF検証
	if err := f.ssrfGuard.ValidateURL(feed.FeedURL); err != nil {
		f.logger.Error("SSRF検証に失敗しました",
			slog.String("feed_id", feed.ID),
			slog.String("feed_url", feed.FeedURL),
			slog.String("error", err.Error()),
		)
		MarkStopped(feed, fmt.Sprintf("SSRF検証失敗: %s", err.Error()))
		f.saveFetchState(ctx, feed)
		return fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	// HTTPリクエスト構築
	client := f.ssrfGuard.NewSafeClient(f.timeout, f.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.FeedURL, nil)
	if err != nil {
		return fmt.Errorf("リクエスト作成に失敗: %w", err)
	}

	req.Header.Set("User-Agent", "CyberHub/1.0 Listing Ingest")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	// 条件付きGET: ETag
	if feed.ETag != "" {
		req.Header.Set("If-None-Match", feed.ETag)
	}
	// 条件付きGET: Last-Modified
	if feed.LastModified != "" {
		req.Header.Set("If-Modified-Since", feed.LastModified)
	}

	// HTTPリクエスト実行
	resp, err := client.Do(req)
	if err != nil {
		f.logger.Error("HTTPリクエストに失敗しました",
			slog.String("feed_id", feed.ID),
			slog.String("feed_url", feed.FeedURL),
			slog.String("error", err.Error()),
		)
		MarkBackoff(feed, fmt.Sprintf("HTTPリクエスト失敗: %s", err.Error()))
		f.saveFetchState(ctx, feed)
		if f.collector != nil {
			f.collector.RecordIngestFailure(feed.ID, "http_error")
		}
		return fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start)
	if f.collector != nil {
		f.collector.RecordIngestHTTPStatus(resp.StatusCode)
		f.collector.RecordIngestLatency(duration)
	}

	// HTTPステータスに基づく処理分岐
	switch ClassifyStatus(resp.StatusCode) {
	case StatusClassNotModified:
		// 304: コンテンツ未変更 - next_fetch_atのみ更新
		f.logger.Info("フィードは未変更です（304）",
			slog.String("feed_id", feed.ID),
			slog.String("feed_url", feed.FeedURL),
			slog.Int("http_status", resp.StatusCode),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		MarkSuccess(feed, f.successInterval)
		if f.collector != nil {
			f.collector.RecordIngestSuccess(feed.ID)
		}
		return f.feedRepo.UpdateFetchState(ctx, feed)

	case StatusClassStop:
		// 404/410/401/403: フェッチ停止
		reason := fmt.Sprintf("HTTPステータス %d によりフェッチを停止しました", resp.StatusCode)
		f.logger.Warn("パートナーフィードのフェッチを停止します",
			slog.String("feed_id", feed.ID),
			slog.String("feed_url", feed.FeedURL),
			slog.Int("http_status", resp.StatusCode),
			slog.String("reason", reason),
		)
		MarkStopped(feed, reason)
		if f.collector != nil {
			f.collector.RecordIngestFailure(feed.ID, "stopped")
		}
		return f.feedRepo.UpdateFetchState(ctx, feed)

	case StatusClassBackoff:
		// 429/5xx: バックオフ
		reason := fmt.Sprintf("HTTPステータス %d によりバックオフを適用しました", resp.StatusCode)
		f.logger.Warn("パートナーフィードのフェッチにバックオフを適用します",
			slog.String("feed_id", feed.ID),
			slog.String("feed_url", feed.FeedURL),
			slog.Int("http_status", resp.StatusCode),
			slog.Int("consecutive_errors", feed.ConsecutiveErrors+1),
		)
		MarkBackoff(feed, reason)
		if f.collector != nil {
			f.collector.RecordIngestFailure(feed.ID, "backoff")
		}
		return f.feedRepo.UpdateFetchState(ctx, feed)

	case StatusClassOK:
		// 200: 正常フェッチ - 以下で処理を続行
	default:
		f.logger.Warn("予期しないHTTPステータスコード",
			slog.String("feed_id", feed.ID),
			slog.Int("http_status", resp.StatusCode),
		)
		MarkBackoff(feed, fmt.Sprintf("予期しないHTTPステータス: %d", resp.StatusCode))
		return f.feedRepo.UpdateFetchState(ctx, feed)
	}

	// レスポンスボディを読み込み（最大サイズ制限付き）
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		f.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("feed_id", feed.ID),
			slog.String("error", err.Error()),
		)
		MarkBackoff(feed, fmt.Sprintf("レスポンス読み取り失敗: %s", err.Error()))
		return f.feedRepo.UpdateFetchState(ctx, feed)
	}

	// ETag/Last-Modifiedを保存
	if etag := resp.Header.Get("ETag"); etag != "" {
		feed.ETag = etag
	}
	if lastMod := resp.Header.Get("Last-Modified"); lastMod != "" {
		feed.LastModified = lastMod
	}

	// gofeedでフィードをパース
	parser := gofeed.NewParser()
	parsedFeed, err := parser.ParseString(string(body))
	if err != nil {
		f.logger.Error("フィードのパースに失敗しました",
			slog.String("feed_id", feed.ID),
			slog.String("feed_url", feed.FeedURL),
			slog.String("error", err.Error()),
		)
		MarkParseFailure(feed, err.Error())
		f.saveFetchState(ctx, feed)
		if f.collector != nil {
			f.collector.RecordParseFailure(feed.ID)
		}
		return nil // パース失敗はフェッチエラーとしない（カウントして継続）
	}

	// フィードタイトルを取り込み元の表示名として更新
	if parsedFeed.Title != "" {
		feed.Name = parsedFeed.Title
	}

	// gofeedの記事をParsedEntryに変換
	entries := convertGofeedItems(parsedFeed.Items)

	// ListingUpsertServiceで案件を保存
	inserted, updated, err := f.upserter.UpsertEntries(ctx, feed, entries)
	if err != nil {
		f.logger.Error("案件のUPSERTに失敗しました",
			slog.String("feed_id", feed.ID),
			slog.String("error", err.Error()),
		)
		MarkParseFailure(feed, fmt.Sprintf("案件UPSERT失敗: %s", err.Error()))
		f.saveFetchState(ctx, feed)
		if f.collector != nil {
			f.collector.RecordIngestFailure(feed.ID, "upsert_error")
		}
		return nil
	}

	MarkSuccess(feed, f.successInterval)
	if f.collector != nil {
		f.collector.RecordIngestSuccess(feed.ID)
		f.collector.RecordListingsUpserted(inserted + updated)
	}

	// フィード状態を更新
	if updateErr := f.feedRepo.UpdateFetchState(ctx, feed); updateErr != nil {
		f.logger.Error("フィード状態の更新に失敗しました",
			slog.String("feed_id", feed.ID),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	f.logger.Info("パートナーフィードのフェッチが完了しました",
		slog.String("feed_id", feed.ID),
		slog.String("feed_url", feed.FeedURL),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("listings_inserted", inserted),
		slog.Int("listings_updated", updated),
		slog.Int("entries_total", len(entries)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// saveFetchState はフィード状態を保存し、失敗時はログに記録する。
// 失敗系の分岐でフェッチ本体のエラーを上書きしないための補助。
func (f *Fetcher) saveFetchState(ctx context.Context, feed *model.PartnerFeed) {
	if err := f.feedRepo.UpdateFetchState(ctx, feed); err != nil {
		f.logger.Error("フィード状態の更新に失敗しました",
			slog.String("feed_id", feed.ID),
			slog.String("error", err.Error()),
		)
	}
}

// convertGofeedItems はgofeedの記事をParsedEntryに変換する。
func convertGofeedItems(items []*gofeed.Item) []ParsedEntry {
	entries := make([]ParsedEntry, 0, len(items))

	for _, item := range items {
		if item == nil {
			continue
		}

		entry := ParsedEntry{
			Title:       item.Title,
			Link:        item.Link,
			Description: item.Content,
			Categories:  item.Categories,
		}

		// GUIDの設定: gofeedはGUIDをitem.GUIDに格納
		if item.GUID != "" {
			entry.GUID = item.GUID
		}

		// 掲載元（著者）情報
		if item.Author != nil {
			entry.Institution = item.Author.Name
		}
		if entry.Institution == "" && len(item.Authors) > 0 && item.Authors[0] != nil {
			entry.Institution = item.Authors[0].Name
		}

		// 公開日時
		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			entry.PublishedAt = &t
		} else if item.UpdatedParsed != nil {
			t := *item.UpdatedParsed
			entry.PublishedAt = &t
		}

		// Contentが空の場合はDescriptionを使用
		if entry.Description == "" && item.Description != "" {
			entry.Description = item.Description
		}

		// LinkがなくGUIDがURL形式の場合はGUIDをLinkとして使用
		if entry.Link == "" && entry.GUID != "" &&
			(strings.HasPrefix(entry.GUID, "http://") || strings.HasPrefix(entry.GUID, "https://")) {
			entry.Link = entry.GUID
		}

		entries = append(entries, entry)
	}

	return entries
}
