// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/veritas/cyberhub/internal/catalog"
	"github.com/veritas/cyberhub/internal/listing"
	"github.com/veritas/cyberhub/internal/middleware"
	"github.com/veritas/cyberhub/internal/model"
	"github.com/veritas/cyberhub/internal/security"
)

// excerptMaxRunes は一覧レスポンスに含める抜粋の最大文字数。
const excerptMaxRunes = 200

// maxPageSize はpage_sizeクエリパラメータの上限。超過分はこの値に丸める。
const maxPageSize = 100

// ListingServiceInterface は案件ハンドラーが必要とするサービスインターフェース。
type ListingServiceInterface interface {
	// Browse はフィルタパイプラインを実行し、閲覧者に表示可能な案件一覧を返す。
	Browse(ctx context.Context, viewerID string, sel catalog.TaxonomySelection, filter catalog.Filter, pageSize int) (*listing.BrowseResult, error)
	// Get は案件詳細を返す。見つからない場合はnilを返す。
	Get(ctx context.Context, id string) (*model.Listing, error)
	// Create は管理操作として案件を作成する。
	Create(ctx context.Context, input listing.CreateInput) (*model.Listing, error)
	// Delete は管理操作として案件を削除する。
	Delete(ctx context.Context, id string) error
}

// ListingHandler は案件閲覧・管理のHTTPハンドラー。
type ListingHandler struct {
	service ListingServiceInterface
	now     func() time.Time
}

// NewListingHandler はListingHandlerを生成する。
func NewListingHandler(service ListingServiceInterface) *ListingHandler {
	return &ListingHandler{
		service: service,
		now:     time.Now,
	}
}

// --- レスポンス型 ---

// listingSummaryResponse は案件一覧のサマリーレスポンス。
type listingSummaryResponse struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Category    string    `json:"category,omitempty"`
	Title       string    `json:"title"`
	Institution string    `json:"institution,omitempty"`
	Location    string    `json:"location,omitempty"`
	Amount      *int64    `json:"amount,omitempty"`
	Duration    string    `json:"duration,omitempty"`
	Excerpt     string    `json:"excerpt,omitempty"`
	PostedAt    time.Time `json:"posted_at"`
	PostedLabel string    `json:"posted_label"`
	IsNew       bool      `json:"is_new"`
}

// listingListResponse は案件一覧のレスポンス。
type listingListResponse struct {
	Success     bool                     `json:"success"`
	Data        []listingSummaryResponse `json:"data"`
	LockedCount int                      `json:"locked_count"`
	Tier        string                   `json:"tier"`
}

// listingDetailResponse は案件詳細のレスポンス。
type listingDetailResponse struct {
	listingSummaryResponse
	Description        string     `json:"description"` // サニタイズ済みHTML
	Deadline           *time.Time `json:"deadline,omitempty"`
	Contact            string     `json:"contact,omitempty"`
	Amenities          []string   `json:"amenities,omitempty"`
	JobType            string     `json:"job_type,omitempty"`
	FieldOfStudy       string     `json:"field_of_study,omitempty"`
	AcademicLevel      string     `json:"academic_level,omitempty"`
	DistanceFromCampus string     `json:"distance_from_campus,omitempty"`
}

// createListingRequest は案件作成リクエストのボディ。
type createListingRequest struct {
	Type               string     `json:"type"`
	Category           string     `json:"category"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Institution        string     `json:"institution"`
	Location           string     `json:"location"`
	Amount             *int64     `json:"amount"`
	Duration           string     `json:"duration"`
	Deadline           *time.Time `json:"deadline"`
	Contact            string     `json:"contact"`
	Amenities          []string   `json:"amenities"`
	JobType            string     `json:"job_type"`
	FieldOfStudy       string     `json:"field_of_study"`
	AcademicLevel      string     `json:"academic_level"`
	DistanceFromCampus string     `json:"distance_from_campus"`
	PostedAt           *time.Time `json:"posted_at"`
}

// ListListings はフィルタ条件付きの案件一覧を取得する。
// GET /api/jobs?category=student&subcategory=bursaries&q=...&location=...&
//
//	min_amount=...&max_amount=...&job_type=a,b&field_of_study=...&
//	academic_level=...&duration=...&amenities=wifi,meals&distance=...&page_size=20
func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := middleware.ViewerIDFromContext(r.Context())
	q := r.URL.Query()

	sel := catalog.TaxonomySelection{
		Major: catalog.MajorCategory(q.Get("category")),
		Sub:   q.Get("subcategory"),
	}

	filter := catalog.Filter{
		Search:        q.Get("q"),
		Location:      q.Get("location"),
		FieldOfStudy:  q.Get("field_of_study"),
		AcademicLevel: q.Get("academic_level"),
		Duration:      q.Get("duration"),
		Distance:      q.Get("distance"),
		JobTypes:      splitCSV(q.Get("job_type")),
		Amenities:     splitCSV(q.Get("amenities")),
	}

	var err error
	if filter.MinAmount, err = parseAmountParam(q.Get("min_amount")); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidFilterError("min_amountは整数で指定してください"))
		return
	}
	if filter.MaxAmount, err = parseAmountParam(q.Get("max_amount")); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidFilterError("max_amountは整数で指定してください"))
		return
	}

	pageSize := 0
	if raw := q.Get("page_size"); raw != "" {
		pageSize, err = strconv.Atoi(raw)
		if err != nil || pageSize < 0 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidFilterError("page_sizeは正の整数で指定してください"))
			return
		}
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}
	}

	result, err := h.service.Browse(r.Context(), viewerID, sel, filter, pageSize)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	now := h.now()
	summaries := make([]listingSummaryResponse, len(result.Listings))
	for i, l := range result.Listings {
		summaries[i] = h.toSummaryResponse(l, now)
	}

	writeJSONResponse(w, http.StatusOK, listingListResponse{
		Success:     true,
		Data:        summaries,
		LockedCount: result.LockedCount,
		Tier:        string(result.Tier),
	})
}

// GetListing は案件詳細を取得する。
// GET /api/jobs/:id
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "id")

	l, err := h.service.Get(r.Context(), listingID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if l == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewListingNotFoundError(listingID))
		return
	}

	now := h.now()
	writeJSONResponse(w, http.StatusOK, listingDetailResponse{
		listingSummaryResponse: h.toSummaryResponse(l, now),
		Description:            l.Description,
		Deadline:               l.Deadline,
		Contact:                l.Contact,
		Amenities:              l.Amenities,
		JobType:                l.JobType,
		FieldOfStudy:           l.FieldOfStudy,
		AcademicLevel:          l.AcademicLevel,
		DistanceFromCampus:     l.DistanceFromCampus,
	})
}

// CreateListing は管理操作として案件を作成する。
// POST /api/jobs
func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	created, err := h.service.Create(r.Context(), listing.CreateInput{
		Type:               req.Type,
		Category:           req.Category,
		Title:              req.Title,
		Description:        req.Description,
		Institution:        req.Institution,
		Location:           req.Location,
		Amount:             req.Amount,
		Duration:           req.Duration,
		Deadline:           req.Deadline,
		Contact:            req.Contact,
		Amenities:          req.Amenities,
		JobType:            req.JobType,
		FieldOfStudy:       req.FieldOfStudy,
		AcademicLevel:      req.AcademicLevel,
		DistanceFromCampus: req.DistanceFromCampus,
		PostedAt:           req.PostedAt,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	now := h.now()
	writeJSONResponse(w, http.StatusCreated, listingDetailResponse{
		listingSummaryResponse: h.toSummaryResponse(created, now),
		Description:            created.Description,
		Deadline:               created.Deadline,
		Contact:                created.Contact,
		Amenities:              created.Amenities,
		JobType:                created.JobType,
		FieldOfStudy:           created.FieldOfStudy,
		AcademicLevel:          created.AcademicLevel,
		DistanceFromCampus:     created.DistanceFromCampus,
	})
}

// DeleteListing は管理操作として案件を削除する。
// DELETE /api/jobs/:id
func (h *ListingHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), listingID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toSummaryResponse はmodel.Listingからサマリーレスポンスに変換する。
// 抜粋はサニタイズ済みHTMLからプレーンテキストを抽出して生成する。
func (h *ListingHandler) toSummaryResponse(l *model.Listing, now time.Time) listingSummaryResponse {
	return listingSummaryResponse{
		ID:          l.ID,
		Type:        string(l.Type),
		Category:    l.Category,
		Title:       l.Title,
		Institution: l.Institution,
		Location:    l.Location,
		Amount:      l.Amount,
		Duration:    l.Duration,
		Excerpt:     security.Excerpt(security.ExtractText(l.Description), excerptMaxRunes),
		PostedAt:    l.PostedAt,
		PostedLabel: catalog.RelativeLabel(l.PostedAt, now),
		IsNew:       catalog.IsNew(l.PostedAt, now),
	}
}

// splitCSV はカンマ区切りのクエリパラメータを分割する。空要素は除外する。
func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

// parseAmountParam は金額クエリパラメータを*int64にパースする。
func parseAmountParam(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
