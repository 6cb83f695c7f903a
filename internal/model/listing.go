// Package model はドメインモデルを定義する。
package model

import "time"

// ListingType は掲載案件の大分類を表す。
type ListingType string

const (
	// ListingTypeJob はリモートワーク案件。
	ListingTypeJob ListingType = "job"
	// ListingTypeBursary は奨学支援金（バーサリー）。
	ListingTypeBursary ListingType = "bursary"
	// ListingTypeScholarship は奨学金。
	ListingTypeScholarship ListingType = "scholarship"
	// ListingTypeInternship はインターンシップ。
	ListingTypeInternship ListingType = "internship"
	// ListingTypeHostel は学生寮。
	ListingTypeHostel ListingType = "hostel"
	// ListingTypeGovernment は行政サービス（E-Citizen）案件。
	ListingTypeGovernment ListingType = "government"
)

// ValidListingType はsが定義済みのListingTypeかどうかを返す。
func ValidListingType(s string) bool {
	switch ListingType(s) {
	case ListingTypeJob, ListingTypeBursary, ListingTypeScholarship,
		ListingTypeInternship, ListingTypeHostel, ListingTypeGovernment:
		return true
	}
	return false
}

// Listing は1件の掲載案件（仕事・奨学金・インターン・寮・行政サービス）を表す。
// 作成後はエンジンからは読み取り専用として扱われ、作成・削除は外部の
// 取り込み処理および管理操作が行う。
type Listing struct {
	ID          string
	Type        ListingType
	Category    string // 自由記述ラベル（例: "Technology", "E-Citizen"）
	Title       string
	Description string // サニタイズ済みHTML
	Institution string
	Location    string
	Amount      *int64 // 通貨単位なしの整数。未設定の場合はnil
	Duration    string
	Deadline    *time.Time
	Contact     string

	// 任意ファセット
	Amenities          []string
	JobType            string
	FieldOfStudy       string
	AcademicLevel      string
	DistanceFromCampus string

	// PostedAt は掲載日時。鮮度判定とデフォルトの並び順を駆動する。
	// 作成後は不変。
	PostedAt time.Time

	// 取り込み元の情報
	SourceFeedID string
	SourceGUID   string
	SourceURL    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasAmenity はlistingが指定のアメニティを持つかどうかを返す。
func (l *Listing) HasAmenity(id string) bool {
	for _, a := range l.Amenities {
		if a == id {
			return true
		}
	}
	return false
}
