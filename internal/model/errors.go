// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, listing, subscription, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeListingNotFound = "LISTING_NOT_FOUND"
	ErrCodeServiceNotFound = "SERVICE_NOT_FOUND"
	ErrCodeUserNotFound    = "USER_NOT_FOUND"
	ErrCodeTicketNotFound  = "TICKET_NOT_FOUND"
	ErrCodeFeedNotFound    = "FEED_NOT_FOUND"
	ErrCodeInvalidCategory = "INVALID_CATEGORY"
	ErrCodeInvalidFilter   = "INVALID_FILTER"
	ErrCodeInvalidClock    = "INVALID_CLOCK"
	ErrCodeInvalidListing  = "INVALID_LISTING"
	ErrCodeInvalidURL      = "INVALID_URL"
	ErrCodeSSRFBlocked     = "SSRF_BLOCKED"
	ErrCodeFetchFailed     = "FETCH_FAILED"
	ErrCodeParseFailed     = "PARSE_FAILED"
)

// NewListingNotFoundError は案件未検出エラーを生成する。
func NewListingNotFoundError(listingID string) *APIError {
	return &APIError{
		Code:     ErrCodeListingNotFound,
		Message:  fmt.Sprintf("指定された案件が見つかりません: %s", listingID),
		Category: "listing",
		Action:   "案件IDを確認してください。",
	}
}

// NewServiceNotFoundError はサービス未検出エラーを生成する。
func NewServiceNotFoundError(serviceID string) *APIError {
	return &APIError{
		Code:     ErrCodeServiceNotFound,
		Message:  fmt.Sprintf("指定されたサービスが見つかりません: %s", serviceID),
		Category: "listing",
		Action:   "サービスIDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", userID),
		Category: "validation",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewTicketNotFoundError は問い合わせチケットが見つからない場合のエラーを生成する。
func NewTicketNotFoundError(ticketID string) *APIError {
	return &APIError{
		Code:     ErrCodeTicketNotFound,
		Message:  fmt.Sprintf("指定されたチケットが見つかりません: %s", ticketID),
		Category: "validation",
		Action:   "チケットIDを確認してください。",
	}
}

// NewFeedNotFoundError はパートナーフィードが見つからない場合のエラーを生成する。
func NewFeedNotFoundError(feedID string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotFound,
		Message:  fmt.Sprintf("指定されたフィードが見つかりません: %s", feedID),
		Category: "validation",
		Action:   "フィードIDを確認してください。",
	}
}

// NewInvalidCategoryError は無効なカテゴリエラーを生成する。
func NewInvalidCategoryError(category string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCategory,
		Message:  fmt.Sprintf("無効なカテゴリです: %s", category),
		Category: "validation",
		Action:   "カテゴリには e-citizen、student、remote のいずれかを指定してください。",
	}
}

// NewInvalidFilterError は無効なフィルタ値エラーを生成する。
func NewInvalidFilterError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilter,
		Message:  fmt.Sprintf("無効なフィルタ値です: %s", reason),
		Category: "validation",
		Action:   "フィルタ値を確認してください。",
	}
}

// NewInvalidClockError は無効な基準時刻エラーを生成する。
// 鮮度判定に使用するnowはゼロ値であってはならない。
func NewInvalidClockError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidClock,
		Message:  "無効な基準時刻が指定されました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidListingError は案件の登録内容が不正な場合のエラーを生成する。
func NewInvalidListingError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidListing,
		Message:  fmt.Sprintf("案件の登録内容が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFetchFailedError はフェッチ失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("URLの取得に失敗しました: %s", reason),
		Category: "listing",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewParseFailedError はパース失敗エラーを生成する。
func NewParseFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeParseFailed,
		Message:  "フィードの解析に失敗しました。",
		Category: "listing",
		Action:   "有効なRSS/Atomフィードかどうか確認してください。",
	}
}
