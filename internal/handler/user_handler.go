package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/veritas/cyberhub/internal/catalog"
	"github.com/veritas/cyberhub/internal/model"
)

// UserStoreInterface はユーザーハンドラーが必要とする永続化インターフェース。
// repository.UserRepositoryがそのまま満たす。
type UserStoreInterface interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByPhone(ctx context.Context, phone string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
}

// PlanServiceInterface はプラン設定の取得・更新のインターフェース。
type PlanServiceInterface interface {
	// PlanFor は指定ユーザーのプラン設定を取得する。未登録の場合はnilを返す。
	PlanFor(ctx context.Context, userID string) (*model.PlanConfig, error)
	// UpdatePlan はプラン設定を冪等に保存する。
	UpdatePlan(ctx context.Context, plan *model.PlanConfig) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	users UserStoreInterface
	plans PlanServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(users UserStoreInterface, plans PlanServiceInterface) *UserHandler {
	return &UserHandler{
		users: users,
		plans: plans,
	}
}

// --- リクエスト・レスポンス型 ---

// createUserRequest はユーザー作成リクエストのボディ。
type createUserRequest struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// userResponse はユーザーのレスポンス。
type userResponse struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// planResponse はプラン設定のレスポンス。
type planResponse struct {
	UserID               string     `json:"user_id"`
	PlanName             string     `json:"plan_name"`
	Tier                 string     `json:"tier"`
	CanAccessNewListings bool       `json:"can_access_new_listings"`
	MaxListingsAccess    int        `json:"max_listings_access"`
	MaxNewListingsPerDay int        `json:"max_new_listings_per_day"`
	ExpiresAt            *time.Time `json:"expires_at,omitempty"`
}

// updatePlanRequest はプラン更新リクエストのボディ。
type updatePlanRequest struct {
	PlanName             string     `json:"plan_name"`
	CanAccessNewListings bool       `json:"can_access_new_listings"`
	MaxListingsAccess    int        `json:"max_listings_access"`
	MaxNewListingsPerDay int        `json:"max_new_listings_per_day"`
	ExpiresAt            *time.Time `json:"expires_at"`
}

// CreateUser はユーザーを作成する。
// POST /api/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if req.Phone == "" || req.Name == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "phoneとnameは必須です。",
			Category: "validation",
			Action:   "必須フィールドを指定してください。",
		})
		return
	}

	role := model.UserRoleViewer
	if req.Role != "" {
		role = model.UserRole(req.Role)
	}

	// 電話番号の重複チェック
	existing, err := h.users.FindByPhone(r.Context(), req.Phone)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if existing != nil {
		writeAPIErrorResponse(w, http.StatusConflict, &model.APIError{
			Code:     "DUPLICATE_USER",
			Message:  "この電話番号はすでに登録されています。",
			Category: "validation",
			Action:   "別の電話番号を指定してください。",
		})
		return
	}

	now := time.Now()
	user := &model.User{
		ID:        uuid.NewString(),
		Phone:     req.Phone,
		Name:      req.Name,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.users.Create(r.Context(), user); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toUserResponse(user))
}

// GetUser はユーザー詳細を取得する。
// GET /api/users/:id
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(userID))
		return
	}

	writeJSONResponse(w, http.StatusOK, toUserResponse(user))
}

// GetPlan はユーザーのプラン設定を取得する。
// プラン未登録のユーザーには無料プランのデフォルトを返す。
// GET /api/users/:id/plan
func (h *UserHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	plan, err := h.plans.PlanFor(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if plan == nil {
		// プラン未登録は無料扱い
		writeJSONResponse(w, http.StatusOK, planResponse{
			UserID:   userID,
			PlanName: "free",
			Tier:     "free",
		})
		return
	}

	writeJSONResponse(w, http.StatusOK, toPlanResponse(plan))
}

// UpdatePlan はユーザーのプラン設定を更新する。
// PUT /api/users/:id/plan
func (h *UserHandler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(userID))
		return
	}

	var req updatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	plan := &model.PlanConfig{
		UserID:               userID,
		PlanName:             req.PlanName,
		CanAccessNewListings: req.CanAccessNewListings,
		MaxListingsAccess:    req.MaxListingsAccess,
		MaxNewListingsPerDay: req.MaxNewListingsPerDay,
		ExpiresAt:            req.ExpiresAt,
		UpdatedAt:            time.Now(),
	}

	if err := h.plans.UpdatePlan(r.Context(), plan); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, toPlanResponse(plan))
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Phone:     user.Phone,
		Name:      user.Name,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt,
	}
}

// toPlanResponse はmodel.PlanConfigからAPIレスポンスに変換する。
func toPlanResponse(plan *model.PlanConfig) planResponse {
	return planResponse{
		UserID:               plan.UserID,
		PlanName:             plan.PlanName,
		Tier:                 string(catalog.TierFromPlan(plan, time.Now())),
		CanAccessNewListings: plan.CanAccessNewListings,
		MaxListingsAccess:    plan.MaxListingsAccess,
		MaxNewListingsPerDay: plan.MaxNewListingsPerDay,
		ExpiresAt:            plan.ExpiresAt,
	}
}
