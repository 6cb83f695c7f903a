package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/veritas/cyberhub/internal/model"
)

// PostgresServiceRepo はPostgreSQLを使用したギグサービスリポジトリ。
type PostgresServiceRepo struct {
	db *sql.DB
}

// NewPostgresServiceRepo はPostgresServiceRepoを生成する。
func NewPostgresServiceRepo(db *sql.DB) *PostgresServiceRepo {
	return &PostgresServiceRepo{db: db}
}

// FindByID は指定IDのサービスを取得する。見つからない場合はnilを返す。
func (r *PostgresServiceRepo) FindByID(ctx context.Context, id string) (*model.Service, error) {
	s := &model.Service{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, category, description, price, turnaround, active,
		        created_at, updated_at
		 FROM services WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.Name, &s.Category, &s.Description, &s.Price, &s.Turnaround,
		&s.Active, &s.CreatedAt, &s.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("サービスの取得に失敗しました: %w", err)
	}

	return s, nil
}

// ListActive は有効なサービスの一覧を返す。
// categoryが空でない場合はカテゴリで絞り込む。
func (r *PostgresServiceRepo) ListActive(ctx context.Context, category string) ([]*model.Service, error) {
	query := `SELECT id, name, category, description, price, turnaround, active,
	                 created_at, updated_at
	          FROM services WHERE active = TRUE`
	args := []any{}
	if category != "" {
		query += ` AND LOWER(category) = LOWER($1)`
		args = append(args, category)
	}
	query += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("サービス一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var services []*model.Service
	for rows.Next() {
		s := &model.Service{}
		if err := rows.Scan(&s.ID, &s.Name, &s.Category, &s.Description, &s.Price,
			&s.Turnaround, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("サービス行の読み取りに失敗しました: %w", err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("サービス一覧の走査に失敗しました: %w", err)
	}

	return services, nil
}
