package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/veritas/cyberhub/internal/model"
)

// mockUpserter はEntryUpserterのテスト用モック。
type mockUpserter struct {
	insertCount int
	updateCount int
	err         error
	calledWith  []ParsedEntry
}

func (m *mockUpserter) UpsertEntries(_ context.Context, _ *model.PartnerFeed, entries []ParsedEntry) (int, int, error) {
	m.calledWith = entries
	return m.insertCount, m.updateCount, m.err
}

// mockSSRFGuard はSSRFValidatorのテスト用モック。
type mockSSRFGuard struct {
	validateErr error
}

func (m *mockSSRFGuard) NewSafeClient(timeout time.Duration, _ int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (m *mockSSRFGuard) ValidateURL(_ string) error {
	return m.validateErr
}

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Partner Listings</title>
    <link>https://partner.example</link>
    <item>
      <title>Remote Go Developer</title>
      <link>https://partner.example/jobs/1</link>
      <guid>jobs-1</guid>
      <description>&lt;p&gt;Build backend services&lt;/p&gt;</description>
      <category>Remote</category>
      <pubDate>Sun, 01 Jun 2025 09:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Engineering Bursary 2025</title>
      <link>https://partner.example/bursaries/7</link>
      <guid>bursaries-7</guid>
      <category>Bursaries</category>
    </item>
  </channel>
</rss>`

func activeFeed(url string) *model.PartnerFeed {
	return &model.PartnerFeed{
		ID:          "feed-1",
		FeedURL:     url,
		Name:        "Partner",
		DefaultType: model.ListingTypeJob,
		FetchStatus: model.FetchStatusActive,
	}
}

func newTestFetcher(repo *mockFeedRepo, upserter *mockUpserter, guard *mockSSRFGuard) *Fetcher {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)
	return NewFetcher(repo, upserter, guard, logger, 10*time.Second, 5*1024*1024, 30*time.Minute)
}

func TestFetcher_Fetch_Success200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Last-Modified", "Wed, 01 Jan 2025 00:00:00 GMT")
		fmt.Fprint(w, sampleRSS)
	}))
	defer server.Close()

	var savedFeed *model.PartnerFeed
	repo := &mockFeedRepo{
		updateFetchStateFunc: func(_ context.Context, feed *model.PartnerFeed) error {
			savedFeed = feed
			return nil
		},
	}
	upserter := &mockUpserter{insertCount: 2}

	f := newTestFetcher(repo, upserter, &mockSSRFGuard{})
	feed := activeFeed(server.URL)

	if err := f.Fetch(context.Background(), feed); err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	if len(upserter.calledWith) != 2 {
		t.Fatalf("UPSERTに渡された件数 = %d, want 2", len(upserter.calledWith))
	}
	first := upserter.calledWith[0]
	if first.Title != "Remote Go Developer" || first.GUID != "jobs-1" {
		t.Errorf("1件目のパース結果が不正: %+v", first)
	}
	if len(first.Categories) != 1 || first.Categories[0] != "Remote" {
		t.Errorf("カテゴリが取り込まれていない: %+v", first.Categories)
	}
	if first.PublishedAt == nil {
		t.Error("公開日時がパースされていない")
	}

	if savedFeed == nil {
		t.Fatal("フィード状態が保存されていない")
	}
	if savedFeed.ETag != `"abc123"` {
		t.Errorf("ETag = %q, want %q", savedFeed.ETag, `"abc123"`)
	}
	if savedFeed.LastModified != "Wed, 01 Jan 2025 00:00:00 GMT" {
		t.Errorf("LastModified = %q", savedFeed.LastModified)
	}
	if savedFeed.Name != "Partner Listings" {
		t.Errorf("フィードタイトルが反映されていない: %q", savedFeed.Name)
	}
	if savedFeed.ConsecutiveErrors != 0 {
		t.Errorf("ConsecutiveErrors = %d, want 0", savedFeed.ConsecutiveErrors)
	}
	if savedFeed.NextFetchAt.IsZero() {
		t.Error("NextFetchAtが設定されていない")
	}
}

func TestFetcher_Fetch_ConditionalGetHeaders(t *testing.T) {
	var gotIfNoneMatch, gotIfModifiedSince string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIfNoneMatch = r.Header.Get("If-None-Match")
		gotIfModifiedSince = r.Header.Get("If-Modified-Since")
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	upserter := &mockUpserter{}
	f := newTestFetcher(&mockFeedRepo{}, upserter, &mockSSRFGuard{})

	feed := activeFeed(server.URL)
	feed.ETag = `"abc123"`
	feed.LastModified = "Wed, 01 Jan 2025 00:00:00 GMT"

	if err := f.Fetch(context.Background(), feed); err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	if gotIfNoneMatch != `"abc123"` {
		t.Errorf("If-None-Match = %q, want %q", gotIfNoneMatch, `"abc123"`)
	}
	if gotIfModifiedSince != "Wed, 01 Jan 2025 00:00:00 GMT" {
		t.Errorf("If-Modified-Since = %q", gotIfModifiedSince)
	}
	// 304ではUPSERTを実行しない
	if upserter.calledWith != nil {
		t.Error("304の場合はUPSERTを呼んではならない")
	}
}

func TestFetcher_Fetch_NotFoundStopsFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	var savedFeed *model.PartnerFeed
	repo := &mockFeedRepo{
		updateFetchStateFunc: func(_ context.Context, feed *model.PartnerFeed) error {
			savedFeed = feed
			return nil
		},
	}

	f := newTestFetcher(repo, &mockUpserter{}, &mockSSRFGuard{})
	if err := f.Fetch(context.Background(), activeFeed(server.URL)); err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	if savedFeed == nil || savedFeed.FetchStatus != model.FetchStatusStopped {
		t.Errorf("404ではフェッチを停止すべき: %+v", savedFeed)
	}
}

func TestFetcher_Fetch_ServerErrorAppliesBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	var savedFeed *model.PartnerFeed
	repo := &mockFeedRepo{
		updateFetchStateFunc: func(_ context.Context, feed *model.PartnerFeed) error {
			savedFeed = feed
			return nil
		},
	}

	f := newTestFetcher(repo, &mockUpserter{}, &mockSSRFGuard{})
	if err := f.Fetch(context.Background(), activeFeed(server.URL)); err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	if savedFeed.ConsecutiveErrors != 1 {
		t.Errorf("ConsecutiveErrors = %d, want 1", savedFeed.ConsecutiveErrors)
	}
	if savedFeed.FetchStatus != model.FetchStatusActive {
		t.Errorf("バックオフではフェッチ状態を維持すべき: %v", savedFeed.FetchStatus)
	}
	if !savedFeed.NextFetchAt.After(time.Now()) {
		t.Error("NextFetchAtが未来に設定されていない")
	}
}

func TestFetcher_Fetch_ParseFailureCounted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not xml at all {{{")
	}))
	defer server.Close()

	var savedFeed *model.PartnerFeed
	repo := &mockFeedRepo{
		updateFetchStateFunc: func(_ context.Context, feed *model.PartnerFeed) error {
			savedFeed = feed
			return nil
		},
	}

	f := newTestFetcher(repo, &mockUpserter{}, &mockSSRFGuard{})

	// パース失敗はフェッチエラーとせず、カウントして継続する
	if err := f.Fetch(context.Background(), activeFeed(server.URL)); err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	if savedFeed.ConsecutiveErrors != 1 {
		t.Errorf("ConsecutiveErrors = %d, want 1", savedFeed.ConsecutiveErrors)
	}
}

func TestFetcher_Fetch_SSRFValidationFailure(t *testing.T) {
	var savedFeed *model.PartnerFeed
	repo := &mockFeedRepo{
		updateFetchStateFunc: func(_ context.Context, feed *model.PartnerFeed) error {
			savedFeed = feed
			return nil
		},
	}
	guard := &mockSSRFGuard{validateErr: errors.New("blocked IP address: 169.254.169.254")}

	f := newTestFetcher(repo, &mockUpserter{}, guard)
	err := f.Fetch(context.Background(), activeFeed("http://169.254.169.254/feed"))
	if err == nil {
		t.Fatal("SSRF検証失敗はエラーを返すべき")
	}

	if savedFeed == nil || savedFeed.FetchStatus != model.FetchStatusStopped {
		t.Errorf("SSRF検証失敗ではフェッチを停止すべき: %+v", savedFeed)
	}
}

func TestConvertGofeedItems_NilItemsSkipped(t *testing.T) {
	entries := convertGofeedItems(nil)
	if len(entries) != 0 {
		t.Errorf("空入力には空スライスを返すべき: %d件", len(entries))
	}
}
