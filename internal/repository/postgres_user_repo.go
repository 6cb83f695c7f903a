package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/veritas/cyberhub/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	u := &model.User{}
	var role string

	err := r.db.QueryRowContext(ctx,
		`SELECT id, phone, name, role, created_at, updated_at FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Phone, &u.Name, &role, &u.CreatedAt, &u.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}

	u.Role = model.UserRole(role)
	return u, nil
}

// FindByPhone は電話番号でユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	u := &model.User{}
	var role string

	err := r.db.QueryRowContext(ctx,
		`SELECT id, phone, name, role, created_at, updated_at FROM users WHERE phone = $1`,
		phone,
	).Scan(&u.ID, &u.Phone, &u.Name, &role, &u.CreatedAt, &u.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("電話番号によるユーザーの検索に失敗しました: %w", err)
	}

	u.Role = model.UserRole(role)
	return u, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, u *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, phone, name, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Phone, u.Name, string(u.Role), u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}
	return nil
}

// PostgresPlanRepo はPostgreSQLを使用したプラン設定リポジトリ。
type PostgresPlanRepo struct {
	db *sql.DB
}

// NewPostgresPlanRepo はPostgresPlanRepoを生成する。
func NewPostgresPlanRepo(db *sql.DB) *PostgresPlanRepo {
	return &PostgresPlanRepo{db: db}
}

// FindByUserID は指定ユーザーのプラン設定を取得する。見つからない場合はnilを返す。
func (r *PostgresPlanRepo) FindByUserID(ctx context.Context, userID string) (*model.PlanConfig, error) {
	p := &model.PlanConfig{}
	var expiresAt sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, plan_name, can_access_new_listings, max_listings_access,
		        max_new_listings_per_day, expires_at, updated_at
		 FROM plan_configs WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.PlanName, &p.CanAccessNewListings, &p.MaxListingsAccess,
		&p.MaxNewListingsPerDay, &expiresAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プラン設定の取得に失敗しました: %w", err)
	}

	p.ExpiresAt = nullTimePtr(expiresAt)
	return p, nil
}

// Upsert はプラン設定を冪等に作成・更新する。
func (r *PostgresPlanRepo) Upsert(ctx context.Context, p *model.PlanConfig) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO plan_configs (
			user_id, plan_name, can_access_new_listings, max_listings_access,
			max_new_listings_per_day, expires_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			plan_name = EXCLUDED.plan_name,
			can_access_new_listings = EXCLUDED.can_access_new_listings,
			max_listings_access = EXCLUDED.max_listings_access,
			max_new_listings_per_day = EXCLUDED.max_new_listings_per_day,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at`,
		p.UserID, p.PlanName, p.CanAccessNewListings, p.MaxListingsAccess,
		p.MaxNewListingsPerDay, deadlineValue(p.ExpiresAt), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("プラン設定のUPSERTに失敗しました: %w", err)
	}
	return nil
}
