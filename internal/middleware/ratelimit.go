package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hitoshi/todoapi/internal/model"
	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // 認証済みAPIのレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // 認証済みAPIのバーストサイズ
	AuthRate        rate.Limit    // register/loginのレート（req/sec）。10/60
	AuthBurst       int           // register/loginのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return NewRateLimiterConfig(120, 10)
}

// NewRateLimiterConfig は1分あたりのリクエスト数からRateLimiterConfigを生成する。
func NewRateLimiterConfig(generalPerMinute, authPerMinute int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(generalPerMinute) / 60.0),
		GeneralBurst:    generalPerMinute,
		AuthRate:        rate.Limit(float64(authPerMinute) / 60.0),
		AuthBurst:       authPerMinute,
		CleanupInterval: 5 * time.Minute,
	}
}

// keyLimiter はキーごとのレートリミッターとアクセス時刻を保持する。
type keyLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet は同じレート設定を共有するキー別リミッターの集合。
type limiterSet struct {
	mu       sync.RWMutex
	limiters map[string]*keyLimiter
	rate     rate.Limit
	burst    int
}

func newLimiterSet(r rate.Limit, burst int) *limiterSet {
	return &limiterSet{
		limiters: make(map[string]*keyLimiter),
		rate:     r,
		burst:    burst,
	}
}

// get はキーのリミッターを取得または作成する。
func (s *limiterSet) get(key string) *rate.Limiter {
	s.mu.RLock()
	kl, exists := s.limiters[key]
	s.mu.RUnlock()

	if exists {
		s.mu.Lock()
		kl.lastAccess = time.Now()
		s.mu.Unlock()
		return kl.limiter
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// ダブルチェック
	if kl, exists := s.limiters[key]; exists {
		kl.lastAccess = time.Now()
		return kl.limiter
	}

	limiter := rate.NewLimiter(s.rate, s.burst)
	s.limiters[key] = &keyLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}
	return limiter
}

func (s *limiterSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.limiters)
}

func (s *limiterSet) expire(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, kl := range s.limiters {
		if now.Sub(kl.lastAccess) > ttl {
			delete(s.limiters, key)
		}
	}
}

// RateLimiter はレート制限を管理する。
// 認証済みAPIはユーザー単位、register/loginはクライアントIP単位で制限する。
type RateLimiter struct {
	config  RateLimiterConfig
	general *limiterSet
	auth    *limiterSet
	stopCh  chan struct{}
	once    sync.Once
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		general: newLimiterSet(config.GeneralRate, config.GeneralBurst),
		auth:    newLimiterSet(config.AuthRate, config.AuthBurst),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware は認証済みAPIのレート制限ミドルウェアを返す。
// BearerAuthMiddlewareの後に配置する。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			if !rl.general.get(strconv.FormatInt(user.ID, 10)).Allow() {
				writeRateLimitResponse(w, rl.config.GeneralRate)
				slog.Warn("rate limit exceeded",
					slog.Int64("user_id", user.ID),
					slog.String("limit_type", "general"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuthMiddleware はregister/login用のレート制限ミドルウェアを返す。
// 未認証のためクライアントIPをキーにする。chiのRealIPの後に配置する。
func (rl *RateLimiter) AuthMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !rl.auth.get(ip).Allow() {
				writeRateLimitResponse(w, rl.config.AuthRate)
				slog.Warn("rate limit exceeded",
					slog.String("client_ip", ip),
					slog.String("limit_type", "auth"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GeneralLimiterCount は現在管理されているユーザー別リミッターのエントリ数を返す。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.len()
}

// AuthLimiterCount は現在管理されているIP別リミッターのエントリ数を返す。
func (rl *RateLimiter) AuthLimiterCount() int {
	return rl.auth.len()
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2
	now := time.Now()
	rl.general.expire(now, ttl)
	rl.auth.expire(now, ttl)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = int(math.Ceil(1.0 / float64(r)))
	}
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
}
