// Package model はドメインモデルを定義する。
package model

import "time"

// PartnerFeed は掲載案件の取り込み元となるパートナーのRSS/Atomフィードを表す。
type PartnerFeed struct {
	ID                string
	FeedURL           string
	Name              string
	DefaultType       ListingType // カテゴリタグから型を推定できない場合のフォールバック
	FetchStatus       FetchStatus
	ConsecutiveErrors int
	ErrorMessage      string
	ETag              string
	LastModified      string
	NextFetchAt       time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FetchStatus はパートナーフィードのフェッチ状態を表す。
type FetchStatus string

const (
	// FetchStatusActive はアクティブなフェッチ状態。
	FetchStatusActive FetchStatus = "active"
	// FetchStatusStopped は停止されたフェッチ状態。
	FetchStatusStopped FetchStatus = "stopped"
	// FetchStatusError はエラーによるフェッチ停止状態。
	FetchStatusError FetchStatus = "error"
)
