package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/veritas/cyberhub/internal/metrics"
	"github.com/veritas/cyberhub/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 案件閲覧・管理
	ListingService ListingServiceInterface

	// ギグサービスカタログ
	ServiceCatalog ServiceCatalogInterface

	// ユーザーとプラン
	UserStore   UserStoreInterface
	PlanService PlanServiceInterface

	// 問い合わせ
	SupportStore SupportStoreInterface

	// パートナーフィード登録
	FeedStore        FeedStoreInterface
	FeedURLValidator FeedURLValidator

	// Prometheusスクレイプ
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Viewer → Logging → RateLimit(General)
//
// /healthと/metricsはレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	listingHandler := NewListingHandler(deps.ListingService)
	serviceHandler := NewServiceHandler(deps.ServiceCatalog)
	userHandler := NewUserHandler(deps.UserStore, deps.PlanService)
	supportHandler := NewSupportHandler(deps.SupportStore)
	feedHandler := NewFeedHandler(deps.FeedStore, deps.FeedURLValidator)

	// --- 運用エンドポイント（レート制限の外）---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- APIルート ---
	// ミドルウェアスタック: Viewer → Logging → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewViewerMiddleware())
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 案件閲覧・管理
		r.Route("/api/jobs", func(r chi.Router) {
			r.Get("/", listingHandler.ListListings)

			// POST /api/jobs - 案件作成（書き込み専用レート制限を追加）
			r.With(deps.RateLimiter.WriteMiddleware()).Post("/", listingHandler.CreateListing)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", listingHandler.GetListing)
				r.Delete("/", listingHandler.DeleteListing)
			})
		})

		// ギグサービスカタログ
		r.Route("/api/services", func(r chi.Router) {
			r.Get("/", serviceHandler.ListServices)
			r.Get("/{id}", serviceHandler.GetService)
		})

		// ユーザーとプラン
		r.Route("/api/users", func(r chi.Router) {
			r.With(deps.RateLimiter.WriteMiddleware()).Post("/", userHandler.CreateUser)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", userHandler.GetUser)
				r.Get("/plan", userHandler.GetPlan)
				r.Put("/plan", userHandler.UpdatePlan)
			})
		})

		// パートナーフィード登録
		r.Route("/api/feeds", func(r chi.Router) {
			r.With(deps.RateLimiter.WriteMiddleware()).Post("/", feedHandler.CreateFeed)
			r.Get("/{id}", feedHandler.GetFeed)
		})

		// 問い合わせ
		r.Route("/api/support", func(r chi.Router) {
			r.Get("/", supportHandler.ListTickets)
			r.With(deps.RateLimiter.WriteMiddleware()).Post("/", supportHandler.CreateTicket)
			r.Get("/{id}", supportHandler.GetTicket)
		})
	})

	return r
}
