// Package app はclanhubのエントリーポイントとして、設定の読み込み、
// 依存関係のワイヤリング、起動モードごとの実行を提供する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/clanhub/internal/auth"
	"github.com/hitoshi/clanhub/internal/clan"
	"github.com/hitoshi/clanhub/internal/config"
	"github.com/hitoshi/clanhub/internal/database"
	"github.com/hitoshi/clanhub/internal/handler"
	"github.com/hitoshi/clanhub/internal/hero"
	"github.com/hitoshi/clanhub/internal/logger"
	"github.com/hitoshi/clanhub/internal/metrics"
	"github.com/hitoshi/clanhub/internal/middleware"
	"github.com/hitoshi/clanhub/internal/repository"
	"github.com/hitoshi/clanhub/internal/security"
	"github.com/hitoshi/clanhub/internal/session"
	"github.com/hitoshi/clanhub/internal/user"
	"github.com/hitoshi/clanhub/internal/worker/cleanup"
)

const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数のConfigを読み込み、
// LOG_LEVELに合わせてログレベルを設定し直す。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, nil)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーとメトリクスサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	clanRepo := repository.NewPostgresClanRepo(db)
	heroRepo := repository.NewPostgresHeroRepo(db)

	// 3. セッション状態の配信先
	hub := session.NewHub()

	// 4. ドメインサービスの初期化
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, userRepo, userRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	).WithNotifier(hub)

	clanService := clan.NewService(clanRepo, userRepo, hub)
	heroService := hero.NewService(
		heroRepo,
		security.NewTextSanitizer(),
		security.NewPhotoGuard(cfg.PhotoCheckTimeout),
		hero.WithPhotoProbe(cfg.PhotoCheckEnabled),
	)
	userService := user.NewService(userRepo, sessionRepo, heroRepo, hub)

	// 5. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitHeroReg),
	)
	defer rateLimiter.Stop()

	authConfig := handler.AuthHandlerConfig{
		BaseURL:       cfg.BaseURL,
		LoginPath:     cfg.LoginPath,
		CookieDomain:  cfg.CookieDomain,
		CookieSecure:  cfg.CookieSecure,
		SessionMaxAge: cfg.SessionMaxAge,
	}

	router, err := handler.NewRouter(&handler.RouterDeps{
		Resolver:          authService,
		Hub:               hub,
		HealthChecker:     db,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter: rateLimiter,
		Metrics:     collector,
		Logger:      slog.Default(),

		AuthService: authService,
		AuthConfig:  authConfig,

		ClanService: clanService,
		HeroService: heroService,
		UserService: userService,
	})
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	// 7. HTTPサーバーの起動
	// セッションストリームは自身で書き込み期限を外すため、WriteTimeoutは通常のAPIに合わせる
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           metrics.SetupMetricsRoute(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		return listen(server)
	})
	g.Go(func() error {
		slog.Info("metrics server starting", slog.String("addr", metricsServer.Addr))
		return listen(metricsServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down API server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return errors.Join(server.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// listen はサーバーを起動し、Shutdownによる終了はエラーとして扱わない。
func listen(s *http.Server) error {
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen %s: %w", s.Addr, err)
	}
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れセッションの定期削除を実行する。
// ctxがキャンセルされるとシャットダウンする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	cleanupJob := cleanup.NewSessionCleanupJob(db, slog.Default())

	slog.Info("worker starting",
		slog.Duration("session_cleanup_interval", cfg.SessionCleanupInterval),
	)

	// 起動直後に1回実行し、以降は間隔ごとに実行する（ブロッキング）
	cleanupJob.RunEvery(ctx, cfg.SessionCleanupInterval)

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

// ストリームの期限切れ検知はauth.Serviceが期限を返せることに依存する
var _ handler.SessionExpiry = (*auth.Service)(nil)
