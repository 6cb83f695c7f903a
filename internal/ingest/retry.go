package ingest

import (
	"fmt"
	"time"

	"github.com/veritas/cyberhub/internal/model"
)

// StatusClass はHTTPステータスコードに基づくフェッチ結果の分類。
type StatusClass int

const (
	// StatusClassOK はフェッチ成功（200）。
	StatusClassOK StatusClass = iota
	// StatusClassNotModified はコンテンツ未変更（304）。
	StatusClassNotModified
	// StatusClassStop はフェッチ停止が必要なステータス（404/410/401/403）。
	StatusClassStop
	// StatusClassBackoff はバックオフが必要なステータス（429/5xx）。
	StatusClassBackoff
	// StatusClassUnknown は未知のステータスコード。
	StatusClassUnknown
)

const (
	// initialBackoff は指数バックオフの初回遅延（15分）。
	initialBackoff = 15 * time.Minute
	// maxBackoff は指数バックオフの最大遅延（6時間）。
	maxBackoff = 6 * time.Hour
	// parseFailureThreshold はパース失敗によるフェッチ停止の閾値。
	parseFailureThreshold = 5
)

// ClassifyStatus はHTTPステータスコードをフェッチ結果に分類する。
func ClassifyStatus(statusCode int) StatusClass {
	switch {
	case statusCode == 200:
		return StatusClassOK
	case statusCode == 304:
		return StatusClassNotModified
	case statusCode == 404 || statusCode == 410:
		return StatusClassStop
	case statusCode == 401 || statusCode == 403:
		return StatusClassStop
	case statusCode == 429:
		return StatusClassBackoff
	case statusCode >= 500:
		return StatusClassBackoff
	default:
		return StatusClassUnknown
	}
}

// NextBackoff は連続エラー回数に基づいて指数バックオフ遅延を計算する。
// 初回15分、2倍ずつ増加、最大6時間。
func NextBackoff(consecutiveErrors int) time.Duration {
	delay := initialBackoff
	for i := 0; i < consecutiveErrors; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

// MarkStopped はパートナーフィードのフェッチを停止する。
// fetch_statusをstoppedに設定し、エラーメッセージを記録する。
func MarkStopped(feed *model.PartnerFeed, reason string) {
	feed.FetchStatus = model.FetchStatusStopped
	feed.ErrorMessage = reason
	feed.UpdatedAt = time.Now()
}

// MarkBackoff はパートナーフィードにバックオフ戦略を適用する。
// 連続エラー回数をインクリメントし、指数バックオフでnext_fetch_atを設定する。
func MarkBackoff(feed *model.PartnerFeed, reason string) {
	feed.ConsecutiveErrors++
	feed.ErrorMessage = reason
	delay := NextBackoff(feed.ConsecutiveErrors - 1)
	feed.NextFetchAt = time.Now().Add(delay)
	feed.UpdatedAt = time.Now()
}

// MarkSuccess はフェッチ成功時にパートナーフィードの状態をリセットする。
// 連続エラー回数を0にリセットし、エラーメッセージをクリアする。
// intervalに基づいてnext_fetch_atを設定する。
func MarkSuccess(feed *model.PartnerFeed, interval time.Duration) {
	feed.ConsecutiveErrors = 0
	feed.ErrorMessage = ""
	feed.NextFetchAt = time.Now().Add(interval)
	feed.UpdatedAt = time.Now()
}

// MarkParseFailure はパース失敗時にパートナーフィードの連続エラー回数をインクリメントする。
// 閾値に達した場合はフェッチを停止する。
func MarkParseFailure(feed *model.PartnerFeed, reason string) {
	feed.ConsecutiveErrors++
	feed.ErrorMessage = fmt.Sprintf("パース失敗 (%d回連続): %s", feed.ConsecutiveErrors, reason)
	feed.UpdatedAt = time.Now()

	if feed.ConsecutiveErrors >= parseFailureThreshold {
		feed.FetchStatus = model.FetchStatusError
		feed.ErrorMessage = fmt.Sprintf("パース失敗が%d回連続したためフェッチを停止しました: %s", feed.ConsecutiveErrors, reason)
	}
}
