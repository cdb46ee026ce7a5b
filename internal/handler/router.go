package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/todoapi/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Authenticator     middleware.TokenAuthenticator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           middleware.HTTPRecorder // nilの場合は記録しない

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler // nilの場合は/metricsを公開しない
	UploadDir      string       // プロフィール写真の保存先

	// 表示
	BaseURL string

	// サービス
	AuthService    AuthServiceInterface
	TodoService    TodoServiceInterface
	ProfileService ProfileServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Logging → Recovery → Metrics → SecurityHeaders → CORS
//	  /api/register, /api/login: AuthRateLimit
//	  その他の /api/*: BearerAuth → RateLimit(General)
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	authHandler := NewAuthHandler(deps.AuthService, deps.BaseURL)
	todoHandler := NewTodoHandler(deps.TodoService)
	profileHandler := NewProfileHandler(deps.ProfileService, deps.BaseURL)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	if deps.UploadDir != "" {
		r.Get("/uploads/profile_photos/*", uploadsHandler(deps.UploadDir))
	}

	r.Route("/api", func(r chi.Router) {
		// --- 認証不要のルート ---
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewBearerAuthMiddleware(deps.Authenticator))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Post("/logout", authHandler.Logout)
			r.Get("/user", authHandler.User)

			r.Put("/profile", profileHandler.Update)
			r.Put("/profile/change-password", profileHandler.ChangePassword)

			r.Route("/todos", func(r chi.Router) {
				r.Get("/", todoHandler.Index)
				r.Post("/", todoHandler.Store)

				r.Route("/{id:[0-9]+}", func(r chi.Router) {
					r.Get("/", todoHandler.Show)
					r.Put("/", todoHandler.Update)
					r.Delete("/", todoHandler.Destroy)
				})
			})

			r.Get("/audit-trail/{id:[0-9]+}", todoHandler.AuditTrail)
		})
	})

	return r
}

// uploadsHandler はアップロード済みファイルを配信する。ディレクトリ一覧は返さない。
func uploadsHandler(dir string) http.HandlerFunc {
	files := http.StripPrefix("/uploads/profile_photos/", http.FileServer(http.Dir(dir)))
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	}
}
