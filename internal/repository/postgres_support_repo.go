package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/veritas/cyberhub/internal/model"
)

// PostgresSupportTicketRepo はPostgreSQLを使用した問い合わせチケットリポジトリ。
type PostgresSupportTicketRepo struct {
	db *sql.DB
}

// NewPostgresSupportTicketRepo はPostgresSupportTicketRepoを生成する。
func NewPostgresSupportTicketRepo(db *sql.DB) *PostgresSupportTicketRepo {
	return &PostgresSupportTicketRepo{db: db}
}

// Create はチケットを作成する。
func (r *PostgresSupportTicketRepo) Create(ctx context.Context, t *model.SupportTicket) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO support_tickets (id, user_id, subject, body, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.UserID, t.Subject, t.Body, string(t.Status), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("チケットの作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDのチケットを取得する。見つからない場合はnilを返す。
func (r *PostgresSupportTicketRepo) FindByID(ctx context.Context, id string) (*model.SupportTicket, error) {
	t := &model.SupportTicket{}
	var status string

	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, subject, body, status, created_at, updated_at
		 FROM support_tickets WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.UserID, &t.Subject, &t.Body, &status, &t.CreatedAt, &t.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("チケットの取得に失敗しました: %w", err)
	}

	t.Status = model.TicketStatus(status)
	return t, nil
}

// ListByUserID はユーザーのチケット一覧を作成日時降順で返す。
func (r *PostgresSupportTicketRepo) ListByUserID(ctx context.Context, userID string) ([]*model.SupportTicket, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, subject, body, status, created_at, updated_at
		 FROM support_tickets WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("チケット一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var tickets []*model.SupportTicket
	for rows.Next() {
		t := &model.SupportTicket{}
		var status string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Subject, &t.Body, &status,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("チケット行の読み取りに失敗しました: %w", err)
		}
		t.Status = model.TicketStatus(status)
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("チケット一覧の走査に失敗しました: %w", err)
	}

	return tickets, nil
}
