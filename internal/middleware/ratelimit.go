package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/clanhub/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）
	GeneralBurst    int           // API全般のバーストサイズ
	HeroRegRate     rate.Limit    // プロフィール登録のレート（req/sec）
	HeroRegBurst    int           // プロフィール登録のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/user、プロフィール登録 10 req/min/user。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return PerMinuteRateLimiterConfig(120, 10)
}

// PerMinuteRateLimiterConfig は1分あたりのリクエスト数から設定を組み立てる。
// バーストサイズは1分ぶんのリクエスト数と同じにする。
func PerMinuteRateLimiterConfig(generalPerMin, heroRegPerMin int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(generalPerMin) / 60.0),
		GeneralBurst:    generalPerMin,
		HeroRegRate:     rate.Limit(float64(heroRegPerMin) / 60.0),
		HeroRegBurst:    heroRegPerMin,
		CleanupInterval: 5 * time.Minute,
	}
}

// userLimiter はユーザーごとのレートリミッターとアクセス時刻を保持する。
type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet はユーザーIDをキーとしたリミッターの集合。
type limiterSet struct {
	name  string
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*userLimiter
}

func newLimiterSet(name string, limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{
		name:     name,
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*userLimiter),
	}
}

// get はユーザーのリミッターを取得または作成し、最終アクセス時刻を更新する。
func (s *limiterSet) get(userID string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	ul, ok := s.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[userID] = ul
	}
	ul.lastAccess = now
	return ul.limiter
}

// sweep は最終アクセスからttlを超えたエントリを削除する。
func (s *limiterSet) sweep(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, ul := range s.limiters {
		if now.Sub(ul.lastAccess) > ttl {
			delete(s.limiters, userID)
		}
	}
}

func (s *limiterSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// middleware はこの集合でレート制限を行うミドルウェアを返す。
// 認証ゲートの後に配置する。
func (s *limiterSet) middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				WriteAPIError(w, model.NewUnauthenticatedError())
				return
			}

			if !s.get(userID, time.Now()).Allow() {
				writeRateLimitResponse(w, s.limit)
				slog.Warn("rate limit exceeded",
					slog.String("user_id", userID),
					slog.String("limit_type", s.name),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter はユーザーごとのレート制限を管理する。
// API全般とプロフィール登録の2種類を独立に提供する。
type RateLimiter struct {
	config RateLimiterConfig

	general *limiterSet
	heroReg *limiterSet

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		general: newLimiterSet("general", config.GeneralRate, config.GeneralBurst),
		heroReg: newLimiterSet("hero_registration", config.HeroRegRate, config.HeroRegBurst),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.general.middleware()
}

// HeroRegistrationMiddleware はプロフィール登録専用のレート制限ミドルウェアを返す。
func (rl *RateLimiter) HeroRegistrationMiddleware() func(next http.Handler) http.Handler {
	return rl.heroReg.middleware()
}

// GeneralLimiterCount は管理中のAPI全般リミッターの数を返す。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.len()
}

// HeroRegLimiterCount は管理中のプロフィール登録リミッターの数を返す。
func (rl *RateLimiter) HeroRegLimiterCount() int {
	return rl.heroReg.len()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2
	rl.general.sweep(now, ttl)
	rl.heroReg.sweep(now, ttl)
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterには1トークンが補充されるまでの秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = max(int(math.Ceil(1.0/float64(r))), 1)
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, &model.APIError{
		Code:     "RATE_LIMIT_EXCEEDED",
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
