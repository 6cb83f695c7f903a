package catalog

import (
	"fmt"
	"time"
)

// FreshnessWindow は案件が「新着」とみなされる掲載からの経過時間。
const FreshnessWindow = time.Hour

// IsNew はnowを基準としてpostedAtが鮮度ウィンドウ内かどうかを返す。
// 掲載から1時間未満の案件が新着として扱われる。
func IsNew(postedAt, now time.Time) bool {
	return now.Sub(postedAt) < FreshnessWindow
}

// RelativeLabel は掲載日時の相対表現ラベルを生成する。
// nowを注入することで決定的にテストできる純粋関数であり、
// システムクロックを直接参照しない。
//
//	<1分:      "Just now"
//	<60分:     "N minutes ago"
//	<90分:     "1 hour ago"
//	<24時間:   "N hours ago"
//	24〜48時間: "Yesterday"
//	≥48時間:   "N days ago"
func RelativeLabel(postedAt, now time.Time) string {
	d := now.Sub(postedAt)
	if d < time.Minute {
		return "Just now"
	}

	mins := int(d.Minutes())
	switch {
	case mins < 60:
		return fmt.Sprintf("%d minutes ago", mins)
	case mins < 90:
		return "1 hour ago"
	case d < 24*time.Hour:
		// 90分以降は最も近い時間数に丸める（90分 -> "2 hours ago"）
		return fmt.Sprintf("%d hours ago", (mins+30)/60)
	case d < 48*time.Hour:
		return "Yesterday"
	default:
		return fmt.Sprintf("%d days ago", int(d.Hours())/24)
	}
}
