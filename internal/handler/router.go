package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/clanhub/internal/gate"
	"github.com/hitoshi/clanhub/internal/metrics"
	"github.com/hitoshi/clanhub/internal/middleware"
	"github.com/hitoshi/clanhub/internal/session"
)

// HealthChecker はヘルスチェックで疎通を確認する依存先。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// セッション。ResolverがSessionExpiryも満たす場合、ストリームは期限切れでDeniedになる。
	Resolver session.Resolver
	Hub      *session.Hub

	// ミドルウェア依存
	HealthChecker     HealthChecker
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Metrics           *metrics.Collector
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメイン
	ClanService ClanServiceInterface
	HeroService HeroServiceInterface
	UserService UserServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Session → ClanProvider → Logging → Metrics → SecurityHeaders → CORS
//
// ページ（/, /heroes）とAPI（/api/*）は認証ゲートの内側に置く。
// ログイン画面、OAuthフロー、セッションストリームはゲートの外に置く。
func NewRouter(deps *RouterDeps) (http.Handler, error) {
	loginPath := deps.AuthConfig.loginPath()

	var (
		observer      gate.Observer
		recorder      RegistrationRecorder
		streamMetrics StreamMetrics
	)
	if deps.Metrics != nil {
		observer = deps.Metrics.GateObserver()
		recorder = deps.Metrics
		streamMetrics = deps.Metrics
	}

	pages, err := NewPageHandler(deps.ClanService, deps.HeroService, loginPath)
	if err != nil {
		return nil, err
	}
	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	clanHandler := NewClanHandler(deps.ClanService)
	heroHandler := NewHeroHandler(deps.HeroService, recorder)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig)
	streamHandler := NewSessionStreamHandler(deps.Hub, loginPath, observer, streamMetrics)
	if expiry, ok := deps.Resolver.(SessionExpiry); ok {
		streamHandler.WithExpiry(expiry)
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSessionMiddleware(deps.Resolver))
	r.Use(middleware.NewClanProviderMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	if deps.Metrics != nil {
		r.Use(metrics.NewHTTPMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(pages.NotFound)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.HealthChecker))
	r.Get(loginPath, pages.Login)
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))
	r.Get("/api/session/stream", streamHandler.Stream)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- ページ（認証ゲート） ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthGateMiddleware(middleware.AuthGateConfig{
			LoginPath:     loginPath,
			Observer:      observer,
			RenderLoading: pages.RenderLoading,
			Logger:        deps.Logger,
		}))

		r.Get("/", pages.Home)
		r.Get("/heroes", pages.Heroes)
	})

	// --- API（認証ゲート） ---
	// ミドルウェアスタック: AuthGate → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthGateMiddleware(middleware.AuthGateConfig{
			LoginPath: loginPath,
			API:       true,
			Observer:  observer,
			Logger:    deps.Logger,
		}))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Route("/api/clans", func(r chi.Router) {
			r.Get("/", clanHandler.ListClans)
			r.Get("/current", clanHandler.CurrentClan)
		})

		r.Route("/api/users/me", func(r chi.Router) {
			r.Delete("/", userHandler.Withdraw)
			r.Put("/clan", clanHandler.JoinClan)
		})

		r.Route("/api/heroes", func(r chi.Router) {
			r.Get("/", heroHandler.ListHeroes)
			// POST /api/heroes - ヒーロー登録（登録専用レート制限を追加）
			r.With(deps.RateLimiter.HeroRegistrationMiddleware()).Post("/", heroHandler.UpsertHero)

			r.Route("/me", func(r chi.Router) {
				r.Get("/", heroHandler.GetMyHero)
				r.Delete("/", heroHandler.DeleteMyHero)
				r.Put("/status", heroHandler.UpdateMyStatus)
			})
		})
	})

	return r, nil
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// checkerがnilの場合は常に200を返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
