// Package app はアプリケーションの起動と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/veritas/cyberhub/internal/cache"
	"github.com/veritas/cyberhub/internal/catalog"
	"github.com/veritas/cyberhub/internal/config"
	"github.com/veritas/cyberhub/internal/database"
	"github.com/veritas/cyberhub/internal/handler"
	"github.com/veritas/cyberhub/internal/ingest"
	"github.com/veritas/cyberhub/internal/listing"
	"github.com/veritas/cyberhub/internal/logger"
	"github.com/veritas/cyberhub/internal/metrics"
	"github.com/veritas/cyberhub/internal/middleware"
	"github.com/veritas/cyberhub/internal/repository"
	"github.com/veritas/cyberhub/internal/security"
	"github.com/veritas/cyberhub/internal/subscription"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. Redis接続（プランキャッシュ用）
	// Redisの障害で閲覧を止めないため、接続失敗時はキャッシュなしで続行する
	var planCache cache.PlanCache
	redisCtx, redisCancel := context.WithTimeout(context.Background(), 5*time.Second)
	redisClient, err := cache.NewRedisClient(redisCtx, cfg.RedisURL)
	redisCancel()
	if err != nil {
		slog.Warn("redis connection failed, plan cache disabled",
			slog.String("error", err.Error()),
		)
	} else {
		defer redisClient.Close()
		planCache = cache.NewRedisPlanCache(redisClient, cfg.PlanCacheTTL)
		slog.Info("redis connection established")
	}

	// 3. リポジトリの初期化
	listingRepo := repository.NewPostgresListingRepo(db)
	serviceRepo := repository.NewPostgresServiceRepo(db)
	userRepo := repository.NewPostgresUserRepo(db)
	planRepo := repository.NewPostgresPlanRepo(db)
	supportRepo := repository.NewPostgresSupportTicketRepo(db)
	feedRepo := repository.NewPostgresPartnerFeedRepo(db)

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. ドメインサービスの初期化
	subService := subscription.NewService(planRepo, planCache)
	listingService := listing.NewService(listingRepo, subService, collector, catalog.Options{
		PageSize:    cfg.PageSize,
		FreeTierCap: cfg.FreeTierCap,
	})

	// 6. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(rateLimiterConfig(cfg)),
		Logger:            slog.Default(),

		ListingService: listingService,
		ServiceCatalog: serviceRepo,
		UserStore:      userRepo,
		PlanService:    subService,
		SupportStore:   supportRepo,

		FeedStore:        feedRepo,
		FeedURLValidator: security.NewSSRFGuard(),

		MetricsGatherer: registry,
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// rateLimiterConfig はConfigからレート制限設定を組み立てる。
// RATE_LIMIT_GENERALはreq/min単位。バーストサイズも同じ値を使う。
// 0以下の値が指定された場合はデフォルト設定にフォールバックする。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rlCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rlCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rlCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	return rlCfg
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、パートナーフィード取り込みのスケジューラを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	feedRepo := repository.NewPostgresPartnerFeedRepo(db)
	listingRepo := repository.NewPostgresListingRepo(db)

	// 3. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. フェッチャーの初期化
	upsertSvc := ingest.NewListingUpsertService(listingRepo, sanitizer, slog.Default())
	fetcher := ingest.NewFetcher(
		feedRepo, upsertSvc, ssrfGuard,
		slog.Default(), cfg.IngestTimeout, cfg.IngestMaxSize, 0,
	)
	fetcher.SetMetricsCollector(collector)

	// 6. クリーンアップジョブとスケジューラの初期化
	cleanupJob := ingest.NewCleanupJob(listingRepo, slog.Default())
	scheduler := ingest.NewScheduler(
		feedRepo, fetcher, cleanupJob,
		slog.Default(), cfg.IngestCronSpec, cfg.IngestMaxConcurrent,
	)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.String("cron_spec", cfg.IngestCronSpec),
		slog.Int("max_concurrent", cfg.IngestMaxConcurrent),
	)

	// スケジューラをメインgoroutineで実行（ブロッキング）
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("scheduler failed: %w", err)
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
