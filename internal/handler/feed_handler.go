package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/veritas/cyberhub/internal/model"
)

// FeedStoreInterface はフィードハンドラーが必要とする永続化インターフェース。
// repository.PostgresPartnerFeedRepoがそのまま満たす。
type FeedStoreInterface interface {
	Create(ctx context.Context, f *model.PartnerFeed) error
	FindByID(ctx context.Context, id string) (*model.PartnerFeed, error)
}

// FeedURLValidator はフィードURLの事前検証を行うインターフェース。
// security.NewSSRFGuardが返す実装がそのまま満たす。
type FeedURLValidator interface {
	ValidateURL(rawURL string) error
}

// FeedHandler はパートナーフィード登録のHTTPハンドラー。
// 登録されたフィードはワーカーの取り込みスケジューラが巡回する。
type FeedHandler struct {
	feeds     FeedStoreInterface
	validator FeedURLValidator
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(feeds FeedStoreInterface, validator FeedURLValidator) *FeedHandler {
	return &FeedHandler{feeds: feeds, validator: validator}
}

// createFeedRequest はフィード登録リクエストのボディ。
type createFeedRequest struct {
	FeedURL     string `json:"feed_url"`
	Name        string `json:"name"`
	DefaultType string `json:"default_type"`
}

// feedResponse はフィードのレスポンス。
type feedResponse struct {
	ID          string    `json:"id"`
	FeedURL     string    `json:"feed_url"`
	Name        string    `json:"name"`
	DefaultType string    `json:"default_type"`
	FetchStatus string    `json:"fetch_status"`
	NextFetchAt time.Time `json:"next_fetch_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateFeed はパートナーフィードを登録する。
// 登録直後からワーカーの巡回対象となる。
// POST /api/feeds
func (h *FeedHandler) CreateFeed(w http.ResponseWriter, r *http.Request) {
	var req createFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if req.FeedURL == "" || req.Name == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "feed_urlとnameは必須です。",
			Category: "validation",
			Action:   "必須フィールドを指定してください。",
		})
		return
	}

	// フェッチ前の静的URL検証。プライベートアドレスなどはここで弾く
	if err := h.validator.ValidateURL(req.FeedURL); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError(err.Error()))
		return
	}

	defaultType := model.ListingTypeJob
	if req.DefaultType != "" {
		if !model.ValidListingType(req.DefaultType) {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidCategoryError(req.DefaultType))
			return
		}
		defaultType = model.ListingType(req.DefaultType)
	}

	now := time.Now()
	feed := &model.PartnerFeed{
		ID:          uuid.NewString(),
		FeedURL:     req.FeedURL,
		Name:        req.Name,
		DefaultType: defaultType,
		FetchStatus: model.FetchStatusActive,
		NextFetchAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.feeds.Create(r.Context(), feed); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toFeedResponse(feed))
}

// GetFeed はフィードの登録内容とフェッチ状態を取得する。
// GET /api/feeds/:id
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	feedID := chi.URLParam(r, "id")

	feed, err := h.feeds.FindByID(r.Context(), feedID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if feed == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewFeedNotFoundError(feedID))
		return
	}

	writeJSONResponse(w, http.StatusOK, toFeedResponse(feed))
}

// toFeedResponse はmodel.PartnerFeedからAPIレスポンスに変換する。
func toFeedResponse(f *model.PartnerFeed) feedResponse {
	return feedResponse{
		ID:          f.ID,
		FeedURL:     f.FeedURL,
		Name:        f.Name,
		DefaultType: string(f.DefaultType),
		FetchStatus: string(f.FetchStatus),
		NextFetchAt: f.NextFetchAt,
		CreatedAt:   f.CreatedAt,
	}
}
