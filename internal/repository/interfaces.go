// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/veritas/cyberhub/internal/model"
)

// ListingRepository は掲載案件データの永続化インターフェース。
// フィルタエンジンは案件を読み取り専用として扱い、作成・更新は
// 取り込みワーカーと管理操作のみが行う。
type ListingRepository interface {
	// FindByID は指定IDの案件を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Listing, error)

	// FindBySourceGUID は取り込み元フィードIDとGUIDで案件を検索する。
	// 取り込み時の同一性判定の最優先手段。見つからない場合はnilを返す。
	FindBySourceGUID(ctx context.Context, feedID, guid string) (*model.Listing, error)

	// FindBySourceURL は取り込み元URLで案件を検索する。
	// 同一性判定の第2優先手段。見つからない場合はnilを返す。
	FindBySourceURL(ctx context.Context, sourceURL string) (*model.Listing, error)

	// ListAll は全案件を掲載日時降順で取得する。
	// フィルタエンジンへのスナップショット供給に使用する。
	ListAll(ctx context.Context) ([]*model.Listing, error)

	// Create は新規案件を作成する。
	Create(ctx context.Context, listing *model.Listing) error

	// Update は既存案件を上書き更新する。履歴は保持しない。
	Update(ctx context.Context, listing *model.Listing) error

	// DeleteByID は指定IDの案件を削除する。
	DeleteByID(ctx context.Context, id string) error

	// DeleteOlderThan は掲載日時がcutoffより古い案件を削除し、削除件数を返す。
	// クリーンアップジョブから使用する。
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByPhone は電話番号でユーザーを検索する。見つからない場合はnilを返す。
	FindByPhone(ctx context.Context, phone string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error
}

// PlanRepository はサブスクリプションプラン設定の永続化インターフェース。
type PlanRepository interface {
	// FindByUserID は指定ユーザーのプラン設定を取得する。
	// 見つからない場合はnilを返す（呼び出し側で無料プラン扱いとする）。
	FindByUserID(ctx context.Context, userID string) (*model.PlanConfig, error)

	// Upsert はプラン設定を冪等に作成・更新する。
	Upsert(ctx context.Context, plan *model.PlanConfig) error
}

// ServiceRepository はギグサービスカタログの永続化インターフェース。
type ServiceRepository interface {
	// FindByID は指定IDのサービスを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Service, error)

	// ListActive は有効なサービスの一覧を返す。
	// categoryが空でない場合はカテゴリで絞り込む。
	ListActive(ctx context.Context, category string) ([]*model.Service, error)
}

// SupportTicketRepository は問い合わせチケットの永続化インターフェース。
type SupportTicketRepository interface {
	// Create はチケットを作成する。
	Create(ctx context.Context, ticket *model.SupportTicket) error

	// FindByID は指定IDのチケットを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.SupportTicket, error)

	// ListByUserID はユーザーのチケット一覧を作成日時降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.SupportTicket, error)
}

// PartnerFeedRepository は取り込み元フィードの永続化インターフェース。
type PartnerFeedRepository interface {
	// FindByID は指定IDのフィードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.PartnerFeed, error)

	// ListDueForFetch はフェッチ対象のフィードを取得する。
	// next_fetch_at <= now() かつ fetch_status = 'active' のフィードを
	// FOR UPDATE SKIP LOCKEDで排他的に取得する。
	ListDueForFetch(ctx context.Context) ([]*model.PartnerFeed, error)

	// Create はフィードを作成する。
	Create(ctx context.Context, feed *model.PartnerFeed) error

	// UpdateFetchState はフィードのフェッチ状態を更新する。
	// fetch_status、consecutive_errors、error_message、next_fetch_at、
	// etag、last_modifiedを更新する。
	UpdateFetchState(ctx context.Context, feed *model.PartnerFeed) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// nullStringValue はsql.NullStringから値を取り出す。無効な場合は空文字列。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullString は空文字列をNULLとして書き込むためのsql.NullStringを生成する。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullInt64Ptr はsql.NullInt64を*int64に変換する。
func nullInt64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

// nullTimePtr はsql.NullTimeを*time.Timeに変換する。
func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
