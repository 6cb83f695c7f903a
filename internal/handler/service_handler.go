package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/veritas/cyberhub/internal/model"
)

// ServiceCatalogInterface はギグサービスハンドラーが必要とするインターフェース。
// repository.ServiceRepositoryがそのまま満たす。
type ServiceCatalogInterface interface {
	FindByID(ctx context.Context, id string) (*model.Service, error)
	ListActive(ctx context.Context, category string) ([]*model.Service, error)
}

// ServiceHandler はギグサービスカタログのHTTPハンドラー。
type ServiceHandler struct {
	catalog ServiceCatalogInterface
}

// NewServiceHandler はServiceHandlerを生成する。
func NewServiceHandler(catalog ServiceCatalogInterface) *ServiceHandler {
	return &ServiceHandler{catalog: catalog}
}

// serviceResponse はギグサービスのレスポンス。
type serviceResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	Price       int64     `json:"price"`
	Turnaround  string    `json:"turnaround,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// serviceListResponse はギグサービス一覧のレスポンス。
type serviceListResponse struct {
	Success bool              `json:"success"`
	Data    []serviceResponse `json:"data"`
}

// ListServices は有効なギグサービス一覧を取得する。
// GET /api/services?category=...
func (h *ServiceHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	services, err := h.catalog.ListActive(r.Context(), category)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	data := make([]serviceResponse, len(services))
	for i, svc := range services {
		data[i] = toServiceResponse(svc)
	}

	writeJSONResponse(w, http.StatusOK, serviceListResponse{
		Success: true,
		Data:    data,
	})
}

// GetService はギグサービス詳細を取得する。
// GET /api/services/:id
func (h *ServiceHandler) GetService(w http.ResponseWriter, r *http.Request) {
	serviceID := chi.URLParam(r, "id")

	svc, err := h.catalog.FindByID(r.Context(), serviceID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if svc == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewServiceNotFoundError(serviceID))
		return
	}

	writeJSONResponse(w, http.StatusOK, toServiceResponse(svc))
}

// toServiceResponse はmodel.ServiceからAPIレスポンスに変換する。
func toServiceResponse(svc *model.Service) serviceResponse {
	return serviceResponse{
		ID:          svc.ID,
		Name:        svc.Name,
		Category:    svc.Category,
		Description: svc.Description,
		Price:       svc.Price,
		Turnaround:  svc.Turnaround,
		CreatedAt:   svc.CreatedAt,
	}
}
