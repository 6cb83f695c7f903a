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

// SupportStoreInterface は問い合わせハンドラーが必要とする永続化インターフェース。
// repository.SupportTicketRepositoryがそのまま満たす。
type SupportStoreInterface interface {
	Create(ctx context.Context, ticket *model.SupportTicket) error
	FindByID(ctx context.Context, id string) (*model.SupportTicket, error)
	ListByUserID(ctx context.Context, userID string) ([]*model.SupportTicket, error)
}

// SupportHandler は問い合わせチケットのHTTPハンドラー。
type SupportHandler struct {
	tickets SupportStoreInterface
}

// NewSupportHandler はSupportHandlerを生成する。
func NewSupportHandler(tickets SupportStoreInterface) *SupportHandler {
	return &SupportHandler{tickets: tickets}
}

// createTicketRequest はチケット作成リクエストのボディ。
type createTicketRequest struct {
	UserID  string `json:"user_id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ticketResponse はチケットのレスポンス。
type ticketResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ticketListResponse はチケット一覧のレスポンス。
type ticketListResponse struct {
	Success bool             `json:"success"`
	Data    []ticketResponse `json:"data"`
}

// CreateTicket は問い合わせチケットを作成する。
// POST /api/support
func (h *SupportHandler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if req.UserID == "" || req.Subject == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "user_idとsubjectは必須です。",
			Category: "validation",
			Action:   "必須フィールドを指定してください。",
		})
		return
	}

	now := time.Now()
	ticket := &model.SupportTicket{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Subject:   req.Subject,
		Body:      req.Body,
		Status:    model.TicketStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.tickets.Create(r.Context(), ticket); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toTicketResponse(ticket))
}

// GetTicket はチケット詳細を取得する。
// GET /api/support/:id
func (h *SupportHandler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "id")

	ticket, err := h.tickets.FindByID(r.Context(), ticketID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if ticket == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewTicketNotFoundError(ticketID))
		return
	}

	writeJSONResponse(w, http.StatusOK, toTicketResponse(ticket))
}

// ListTickets はユーザーのチケット一覧を取得する。
// GET /api/support?user_id=...
func (h *SupportHandler) ListTickets(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "user_idクエリパラメータは必須です。",
			Category: "validation",
			Action:   "user_idを指定してください。",
		})
		return
	}

	tickets, err := h.tickets.ListByUserID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	data := make([]ticketResponse, len(tickets))
	for i, t := range tickets {
		data[i] = toTicketResponse(t)
	}

	writeJSONResponse(w, http.StatusOK, ticketListResponse{
		Success: true,
		Data:    data,
	})
}

// toTicketResponse はmodel.SupportTicketからAPIレスポンスに変換する。
func toTicketResponse(t *model.SupportTicket) ticketResponse {
	return ticketResponse{
		ID:        t.ID,
		UserID:    t.UserID,
		Subject:   t.Subject,
		Body:      t.Body,
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
	}
}
