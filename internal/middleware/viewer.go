// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"
)

// ViewerIDHeader は閲覧者識別に使用するHTTPヘッダー名。
// 認証・セッション管理は本システムの範囲外であり、
// 閲覧者は自己申告のIDでアクセス階層の判定のみに使用される。
const ViewerIDHeader = "X-Viewer-ID"

type viewerContextKey struct{}

// NewViewerMiddleware はX-Viewer-IDヘッダーの値をリクエストコンテキストに
// 格納するミドルウェアを返す。ヘッダーがない場合もリクエストは通過させる
// （匿名閲覧者は無料プラン扱いとなる）。
func NewViewerMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			viewerID := r.Header.Get(ViewerIDHeader)
			if viewerID != "" {
				ctx := context.WithValue(r.Context(), viewerContextKey{}, viewerID)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ViewerIDFromContext はコンテキストから閲覧者IDを取得する。
// 閲覧者IDが設定されていない場合は("", false)を返す。
func ViewerIDFromContext(ctx context.Context) (string, bool) {
	viewerID, ok := ctx.Value(viewerContextKey{}).(string)
	return viewerID, ok && viewerID != ""
}
