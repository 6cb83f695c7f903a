package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/veritas/cyberhub/internal/model"
)

// PostgresPartnerFeedRepo はPostgreSQLを使用した取り込み元フィードリポジトリ。
type PostgresPartnerFeedRepo struct {
	db *sql.DB
}

// NewPostgresPartnerFeedRepo はPostgresPartnerFeedRepoを生成する。
func NewPostgresPartnerFeedRepo(db *sql.DB) *PostgresPartnerFeedRepo {
	return &PostgresPartnerFeedRepo{db: db}
}

// FindByID は指定IDのフィードを取得する。見つからない場合はnilを返す。
func (r *PostgresPartnerFeedRepo) FindByID(ctx context.Context, id string) (*model.PartnerFeed, error) {
	f := &model.PartnerFeed{}
	var defaultType, fetchStatus string

	err := r.db.QueryRowContext(ctx,
		`SELECT id, feed_url, name, default_type, fetch_status, consecutive_errors,
		        error_message, etag, last_modified, next_fetch_at, created_at, updated_at
		 FROM partner_feeds WHERE id = $1`,
		id,
	).Scan(&f.ID, &f.FeedURL, &f.Name, &defaultType, &fetchStatus,
		&f.ConsecutiveErrors, &f.ErrorMessage, &f.ETag, &f.LastModified,
		&f.NextFetchAt, &f.CreatedAt, &f.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}

	f.DefaultType = model.ListingType(defaultType)
	f.FetchStatus = model.FetchStatus(fetchStatus)
	return f, nil
}

// ListDueForFetch はフェッチ対象のフィードを取得する。
// 複数のワーカープロセスが同時に走っても同じフィードを
// 二重にフェッチしないよう、FOR UPDATE SKIP LOCKEDで取得する。
func (r *PostgresPartnerFeedRepo) ListDueForFetch(ctx context.Context) ([]*model.PartnerFeed, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, feed_url, name, default_type, fetch_status, consecutive_errors,
		        error_message, etag, last_modified, next_fetch_at, created_at, updated_at
		 FROM partner_feeds
		 WHERE next_fetch_at <= now() AND fetch_status = 'active'
		 FOR UPDATE SKIP LOCKED`,
	)
	if err != nil {
		return nil, fmt.Errorf("フェッチ対象フィードの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var feeds []*model.PartnerFeed
	for rows.Next() {
		f := &model.PartnerFeed{}
		var defaultType, fetchStatus string
		if err := rows.Scan(&f.ID, &f.FeedURL, &f.Name, &defaultType, &fetchStatus,
			&f.ConsecutiveErrors, &f.ErrorMessage, &f.ETag, &f.LastModified,
			&f.NextFetchAt, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("フィード行の読み取りに失敗しました: %w", err)
		}
		f.DefaultType = model.ListingType(defaultType)
		f.FetchStatus = model.FetchStatus(fetchStatus)
		feeds = append(feeds, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フィード一覧の走査に失敗しました: %w", err)
	}

	return feeds, nil
}

// Create はフィードを作成する。
func (r *PostgresPartnerFeedRepo) Create(ctx context.Context, f *model.PartnerFeed) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO partner_feeds (
			id, feed_url, name, default_type, fetch_status, consecutive_errors,
			error_message, etag, last_modified, next_fetch_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		f.ID, f.FeedURL, f.Name, string(f.DefaultType), string(f.FetchStatus),
		f.ConsecutiveErrors, f.ErrorMessage, f.ETag, f.LastModified,
		f.NextFetchAt, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("フィードの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateFetchState はフィードのフェッチ状態を更新する。
func (r *PostgresPartnerFeedRepo) UpdateFetchState(ctx context.Context, f *model.PartnerFeed) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE partner_feeds SET
			fetch_status = $2, consecutive_errors = $3, error_message = $4,
			next_fetch_at = $5, etag = $6, last_modified = $7, updated_at = $8
		WHERE id = $1`,
		f.ID, string(f.FetchStatus), f.ConsecutiveErrors, f.ErrorMessage,
		f.NextFetchAt, f.ETag, f.LastModified, f.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("フィードのフェッチ状態の更新に失敗しました: %w", err)
	}
	return nil
}
