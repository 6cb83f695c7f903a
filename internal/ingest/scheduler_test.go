package ingest

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/veritas/cyberhub/internal/model"
)

// --- モック定義 ---

// mockFeedRepo はPartnerFeedRepositoryのテスト用モック。
type mockFeedRepo struct {
	listDueForFetchFunc  func(ctx context.Context) ([]*model.PartnerFeed, error)
	updateFetchStateFunc func(ctx context.Context, feed *model.PartnerFeed) error
}

func (m *mockFeedRepo) FindByID(_ context.Context, _ string) (*model.PartnerFeed, error) {
	return nil, nil
}

func (m *mockFeedRepo) Create(_ context.Context, _ *model.PartnerFeed) error {
	return nil
}

func (m *mockFeedRepo) ListDueForFetch(ctx context.Context) ([]*model.PartnerFeed, error) {
	if m.listDueForFetchFunc != nil {
		return m.listDueForFetchFunc(ctx)
	}
	return nil, nil
}

func (m *mockFeedRepo) UpdateFetchState(ctx context.Context, feed *model.PartnerFeed) error {
	if m.updateFetchStateFunc != nil {
		return m.updateFetchStateFunc(ctx, feed)
	}
	return nil
}

// mockFetchService はFeedFetchServiceのテスト用モック。
type mockFetchService struct {
	fetchFunc func(ctx context.Context, feed *model.PartnerFeed) error
}

func (m *mockFetchService) Fetch(ctx context.Context, feed *model.PartnerFeed) error {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, feed)
	}
	return nil
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// --- スケジューラのテスト ---

func TestNewScheduler_DefaultConcurrency(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	// 0以下の場合はデフォルトの10を使用する
	s := NewScheduler(&mockFeedRepo{}, &mockFetchService{}, NewCleanupJob(&mockListingRepo{}, logger), logger, "@every 30m", 0)
	if s.maxConcurrency != 10 {
		t.Errorf("maxConcurrency = %d, want 10 (default)", s.maxConcurrency)
	}
}

func TestScheduler_RunOnce_FetchesDueFeeds(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	feeds := []*model.PartnerFeed{
		{ID: "feed-1", FeedURL: "https://partner.example/jobs.rss", FetchStatus: model.FetchStatusActive},
		{ID: "feed-2", FeedURL: "https://partner.example/bursaries.rss", FetchStatus: model.FetchStatusActive},
	}

	var mu sync.Mutex
	var fetchedIDs []string

	repo := &mockFeedRepo{
		listDueForFetchFunc: func(_ context.Context) ([]*model.PartnerFeed, error) {
			return feeds, nil
		},
	}
	fetcher := &mockFetchService{
		fetchFunc: func(_ context.Context, feed *model.PartnerFeed) error {
			mu.Lock()
			fetchedIDs = append(fetchedIDs, feed.ID)
			mu.Unlock()
			return nil
		},
	}

	s := NewScheduler(repo, fetcher, NewCleanupJob(&mockListingRepo{}, logger), logger, "@every 30m", 10)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}

	if len(fetchedIDs) != 2 {
		t.Errorf("フェッチ件数 = %d, want 2", len(fetchedIDs))
	}
}

func TestScheduler_RunOnce_NoDueFeeds(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	fetchCalled := false
	repo := &mockFeedRepo{
		listDueForFetchFunc: func(_ context.Context) ([]*model.PartnerFeed, error) {
			return nil, nil
		},
	}
	fetcher := &mockFetchService{
		fetchFunc: func(_ context.Context, _ *model.PartnerFeed) error {
			fetchCalled = true
			return nil
		},
	}

	s := NewScheduler(repo, fetcher, NewCleanupJob(&mockListingRepo{}, logger), logger, "@every 30m", 10)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if fetchCalled {
		t.Error("対象フィードがない場合はFetchを呼んではならない")
	}
}

func TestScheduler_RunOnce_RepoError(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	repo := &mockFeedRepo{
		listDueForFetchFunc: func(_ context.Context) ([]*model.PartnerFeed, error) {
			return nil, errors.New("db down")
		},
	}

	s := NewScheduler(repo, &mockFetchService{}, NewCleanupJob(&mockListingRepo{}, logger), logger, "@every 30m", 10)
	if err := s.RunOnce(context.Background()); err == nil {
		t.Error("リポジトリエラーはRunOnceのエラーとして返すべき")
	}
}

func TestScheduler_RunOnce_ContinuesAfterFetchError(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	feeds := []*model.PartnerFeed{
		{ID: "feed-1", FeedURL: "https://partner.example/a.rss"},
		{ID: "feed-2", FeedURL: "https://partner.example/b.rss"},
		{ID: "feed-3", FeedURL: "https://partner.example/c.rss"},
	}

	var fetchCount atomic.Int32
	repo := &mockFeedRepo{
		listDueForFetchFunc: func(_ context.Context) ([]*model.PartnerFeed, error) {
			return feeds, nil
		},
	}
	fetcher := &mockFetchService{
		fetchFunc: func(_ context.Context, feed *model.PartnerFeed) error {
			fetchCount.Add(1)
			if feed.ID == "feed-2" {
				return errors.New("fetch failed")
			}
			return nil
		},
	}

	s := NewScheduler(repo, fetcher, NewCleanupJob(&mockListingRepo{}, logger), logger, "@every 30m", 10)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}

	// 1件の失敗は他のフィードのフェッチを止めない
	if fetchCount.Load() != 3 {
		t.Errorf("フェッチ件数 = %d, want 3", fetchCount.Load())
	}
}

func TestScheduler_RunOnce_RespectsConcurrencyLimit(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	feeds := make([]*model.PartnerFeed, 20)
	for i := range feeds {
		feeds[i] = &model.PartnerFeed{ID: "feed", FeedURL: "https://partner.example/feed.rss"}
	}

	var current, peak atomic.Int32
	repo := &mockFeedRepo{
		listDueForFetchFunc: func(_ context.Context) ([]*model.PartnerFeed, error) {
			return feeds, nil
		},
	}
	fetcher := &mockFetchService{
		fetchFunc: func(_ context.Context, _ *model.PartnerFeed) error {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			current.Add(-1)
			return nil
		},
	}

	s := NewScheduler(repo, fetcher, NewCleanupJob(&mockListingRepo{}, logger), logger, "@every 30m", 3)
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}

	if peak.Load() > 3 {
		t.Errorf("同時実行数のピーク = %d, want <= 3", peak.Load())
	}
}
