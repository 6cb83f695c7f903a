package ingest

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/veritas/cyberhub/internal/model"
)

// mockListingRepo はListingRepositoryのテスト用モック。
type mockListingRepo struct {
	findBySourceGUIDFunc func(ctx context.Context, feedID, guid string) (*model.Listing, error)
	findBySourceURLFunc  func(ctx context.Context, sourceURL string) (*model.Listing, error)
	createFunc           func(ctx context.Context, listing *model.Listing) error
	updateFunc           func(ctx context.Context, listing *model.Listing) error
	deleteOlderThanFunc  func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *mockListingRepo) FindByID(_ context.Context, _ string) (*model.Listing, error) {
	return nil, nil
}

func (m *mockListingRepo) FindBySourceGUID(ctx context.Context, feedID, guid string) (*model.Listing, error) {
	if m.findBySourceGUIDFunc != nil {
		return m.findBySourceGUIDFunc(ctx, feedID, guid)
	}
	return nil, nil
}

func (m *mockListingRepo) FindBySourceURL(ctx context.Context, sourceURL string) (*model.Listing, error) {
	if m.findBySourceURLFunc != nil {
		return m.findBySourceURLFunc(ctx, sourceURL)
	}
	return nil, nil
}

func (m *mockListingRepo) ListAll(_ context.Context) ([]*model.Listing, error) {
	return nil, nil
}

func (m *mockListingRepo) Create(ctx context.Context, listing *model.Listing) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, listing)
	}
	return nil
}

func (m *mockListingRepo) Update(ctx context.Context, listing *model.Listing) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, listing)
	}
	return nil
}

func (m *mockListingRepo) DeleteByID(_ context.Context, _ string) error {
	return nil
}

func (m *mockListingRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.deleteOlderThanFunc != nil {
		return m.deleteOlderThanFunc(ctx, cutoff)
	}
	return 0, nil
}

// mockSanitizer はContentSanitizerServiceのテスト用モック。
// サニタイズ済みであることを確認できるよう入力にマーカーを付与する。
type mockSanitizer struct{}

func (m *mockSanitizer) Sanitize(rawHTML string) string {
	return "[clean]" + rawHTML
}

func testFeed() *model.PartnerFeed {
	return &model.PartnerFeed{
		ID:          "feed-1",
		FeedURL:     "https://partner.example/jobs.rss",
		Name:        "Partner Jobs",
		DefaultType: model.ListingTypeJob,
	}
}

func TestUpsertEntries_CreatesNewListing(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	var created *model.Listing
	repo := &mockListingRepo{
		createFunc: func(_ context.Context, listing *model.Listing) error {
			created = listing
			return nil
		},
	}

	svc := NewListingUpsertService(repo, &mockSanitizer{}, logger)

	published := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	entries := []ParsedEntry{
		{
			GUID:        "guid-1",
			Link:        "https://partner.example/jobs/1",
			Title:       "Remote Go Developer",
			Description: "<p>Build services</p>",
			Categories:  []string{"Remote"},
			PublishedAt: &published,
		},
	}

	inserted, updated, err := svc.UpsertEntries(context.Background(), testFeed(), entries)
	if err != nil {
		t.Fatalf("UpsertEntries error: %v", err)
	}
	if inserted != 1 || updated != 0 {
		t.Errorf("(inserted, updated) = (%d, %d), want (1, 0)", inserted, updated)
	}
	if created == nil {
		t.Fatal("Createが呼ばれていない")
	}
	if created.ID == "" {
		t.Error("IDが採番されていない")
	}
	if created.Type != model.ListingTypeJob {
		t.Errorf("Type = %v, want job", created.Type)
	}
	if created.Description != "[clean]<p>Build services</p>" {
		t.Errorf("説明がサニタイズされていない: %q", created.Description)
	}
	if !created.PostedAt.Equal(published) {
		t.Errorf("PostedAt = %v, want %v", created.PostedAt, published)
	}
	if created.SourceFeedID != "feed-1" || created.SourceGUID != "guid-1" {
		t.Errorf("取り込み元情報が設定されていない: %+v", created)
	}
	if created.Institution != "Partner Jobs" {
		t.Errorf("掲載元が未設定の場合はフィード名を使用すべき: %q", created.Institution)
	}
}

func TestUpsertEntries_UpdatesExistingByGUID(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	originalPostedAt := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	existing := &model.Listing{
		ID:           "listing-1",
		Title:        "Old Title",
		SourceFeedID: "feed-1",
		SourceGUID:   "guid-1",
		PostedAt:     originalPostedAt,
	}

	var updatedListing *model.Listing
	repo := &mockListingRepo{
		findBySourceGUIDFunc: func(_ context.Context, feedID, guid string) (*model.Listing, error) {
			if feedID == "feed-1" && guid == "guid-1" {
				return existing, nil
			}
			return nil, nil
		},
		updateFunc: func(_ context.Context, listing *model.Listing) error {
			updatedListing = listing
			return nil
		},
		createFunc: func(_ context.Context, _ *model.Listing) error {
			t.Fatal("既存案件がある場合はCreateを呼んではならない")
			return nil
		},
	}

	svc := NewListingUpsertService(repo, &mockSanitizer{}, logger)

	newPublished := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	entries := []ParsedEntry{
		{GUID: "guid-1", Title: "New Title", PublishedAt: &newPublished},
	}

	inserted, updated, err := svc.UpsertEntries(context.Background(), testFeed(), entries)
	if err != nil {
		t.Fatalf("UpsertEntries error: %v", err)
	}
	if inserted != 0 || updated != 1 {
		t.Errorf("(inserted, updated) = (%d, %d), want (0, 1)", inserted, updated)
	}
	if updatedListing.Title != "New Title" {
		t.Errorf("Title = %q, want %q", updatedListing.Title, "New Title")
	}
	// posted_atは作成後不変
	if !updatedListing.PostedAt.Equal(originalPostedAt) {
		t.Errorf("PostedAt = %v, 更新で変更してはならない (want %v)", updatedListing.PostedAt, originalPostedAt)
	}
}

func TestUpsertEntries_FallsBackToURLIdentity(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	existing := &model.Listing{
		ID:        "listing-2",
		SourceURL: "https://partner.example/jobs/2",
	}

	urlLookups := 0
	repo := &mockListingRepo{
		findBySourceURLFunc: func(_ context.Context, sourceURL string) (*model.Listing, error) {
			urlLookups++
			if sourceURL == existing.SourceURL {
				return existing, nil
			}
			return nil, nil
		},
	}

	svc := NewListingUpsertService(repo, &mockSanitizer{}, logger)

	// GUIDなしの案件はURLで同一性判定する
	entries := []ParsedEntry{
		{Link: "https://partner.example/jobs/2", Title: "Known job"},
	}

	inserted, updated, err := svc.UpsertEntries(context.Background(), testFeed(), entries)
	if err != nil {
		t.Fatalf("UpsertEntries error: %v", err)
	}
	if urlLookups != 1 {
		t.Errorf("URL検索回数 = %d, want 1", urlLookups)
	}
	if inserted != 0 || updated != 1 {
		t.Errorf("(inserted, updated) = (%d, %d), want (0, 1)", inserted, updated)
	}
}

func TestUpsertEntries_SkipsIncompleteEntries(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	createCalls := 0
	repo := &mockListingRepo{
		createFunc: func(_ context.Context, _ *model.Listing) error {
			createCalls++
			return nil
		},
	}

	svc := NewListingUpsertService(repo, &mockSanitizer{}, logger)

	entries := []ParsedEntry{
		{Title: "", GUID: "guid-1"},                          // タイトルなし
		{Title: "No identity"},                               // GUIDもリンクもなし
		{Title: "Valid", Link: "https://partner.example/ok"}, // 有効
	}

	inserted, updated, err := svc.UpsertEntries(context.Background(), testFeed(), entries)
	if err != nil {
		t.Fatalf("UpsertEntries error: %v", err)
	}
	if createCalls != 1 {
		t.Errorf("Create呼び出し回数 = %d, want 1", createCalls)
	}
	if inserted != 1 || updated != 0 {
		t.Errorf("(inserted, updated) = (%d, %d), want (1, 0)", inserted, updated)
	}
}

func TestInferListingType(t *testing.T) {
	cases := []struct {
		name       string
		categories []string
		fallback   model.ListingType
		want       model.ListingType
	}{
		{"bursaryタグ", []string{"Bursaries", "Finance"}, model.ListingTypeJob, model.ListingTypeBursary},
		{"scholarshipタグ", []string{"scholarship"}, model.ListingTypeJob, model.ListingTypeScholarship},
		{"hostelの別名", []string{"Accommodation"}, model.ListingTypeJob, model.ListingTypeHostel},
		{"e-citizenタグ", []string{"E-Citizen"}, model.ListingTypeJob, model.ListingTypeGovernment},
		{"大文字小文字を無視", []string{"REMOTE"}, model.ListingTypeBursary, model.ListingTypeJob},
		{"前後の空白を無視", []string{" internship "}, model.ListingTypeJob, model.ListingTypeInternship},
		{"未知タグはフォールバック", []string{"Misc"}, model.ListingTypeHostel, model.ListingTypeHostel},
		{"タグなしはフォールバック", nil, model.ListingTypeGovernment, model.ListingTypeGovernment},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := InferListingType(tc.categories, tc.fallback); got != tc.want {
				t.Errorf("InferListingType(%v) = %v, want %v", tc.categories, got, tc.want)
			}
		})
	}
}

func TestCleanupJob_Run(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	var gotCutoff time.Time
	repo := &mockListingRepo{
		deleteOlderThanFunc: func(_ context.Context, cutoff time.Time) (int64, error) {
			gotCutoff = cutoff
			return 7, nil
		},
	}

	job := NewCleanupJob(repo, logger)
	job.RetentionDays = 30

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	wantCutoff := time.Now().AddDate(0, 0, -30)
	diff := gotCutoff.Sub(wantCutoff)
	if diff < -time.Minute || diff > time.Minute {
		t.Errorf("cutoff = %v, want ~%v", gotCutoff, wantCutoff)
	}
}
