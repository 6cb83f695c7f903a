// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザー（閲覧者・エージェント・管理者）を表す。
type User struct {
	ID        string
	Phone     string
	Name      string
	Role      UserRole
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserRole はユーザーの役割を表す。
type UserRole string

const (
	// UserRoleViewer は一般閲覧者。
	UserRoleViewer UserRole = "viewer"
	// UserRoleAgent はエージェント。
	UserRoleAgent UserRole = "agent"
	// UserRoleAdmin は管理者。
	UserRoleAdmin UserRole = "admin"
)

// PlanConfig はサブスクリプションプランのエンタイトルメント設定を表す。
// 外部のプラン管理から供給され、エンジン側ではTierFromPlanで
// free/paidの2値に縮約して使用する。
type PlanConfig struct {
	UserID               string
	PlanName             string
	CanAccessNewListings bool
	MaxListingsAccess    int
	MaxNewListingsPerDay int
	ExpiresAt            *time.Time
	UpdatedAt            time.Time
}
