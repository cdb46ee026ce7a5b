package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/todoapi/internal/auth"
	"github.com/hitoshi/todoapi/internal/cache"
	"github.com/hitoshi/todoapi/internal/config"
	"github.com/hitoshi/todoapi/internal/database"
	"github.com/hitoshi/todoapi/internal/handler"
	"github.com/hitoshi/todoapi/internal/imagestore"
	"github.com/hitoshi/todoapi/internal/mail"
	"github.com/hitoshi/todoapi/internal/metrics"
	"github.com/hitoshi/todoapi/internal/middleware"
	"github.com/hitoshi/todoapi/internal/profile"
	"github.com/hitoshi/todoapi/internal/repository"
	"github.com/hitoshi/todoapi/internal/security"
	"github.com/hitoshi/todoapi/internal/todo"
	"github.com/hitoshi/todoapi/internal/worker/cleanup"
	"github.com/hitoshi/todoapi/internal/worker/daily"
	"github.com/hitoshi/todoapi/internal/worker/logrotate"
	"github.com/hitoshi/todoapi/internal/worker/reminder"
)

// cacheKeyPrefix はRedisのキーに付与するプレフィックス。
const cacheKeyPrefix = "todoapi:"

// logChannels はlogrotateの対象となるログ名。
var logChannels = []string{"app", "email"}

// api はワイヤリング済みのHTTPハンドラーと、停止時に解放するリソース。
type api struct {
	handler http.Handler
	closers []func() error
}

// Close はレート制限のクリーンアップとキャッシュ接続を停止する。
func (a *api) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			slog.Warn("failed to release resource", slog.String("error", err.Error()))
		}
	}
}

// newAPI はリポジトリ、サービス、ハンドラーを組み立てる。
func newAPI(ctx context.Context, rt *runtime, db *sql.DB) (*api, error) {
	cfg := rt.cfg

	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	tokenRepo := repository.NewPostgresTokenRepo(db)
	xdb := database.Sqlx(db)
	todoRepo := repository.NewPostgresTodoRepo(xdb)
	logRepo := repository.NewPostgresTodoLogRepo(xdb)

	// 2. キャッシュと画像保存先
	store, closeStore, err := newCacheStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	files, err := imagestore.NewLocalFileStore(cfg.UploadDir)
	if err != nil {
		closeStore()
		return nil, err
	}
	images := imagestore.NewSaver(files, imagestore.Config{
		MaxBytes:     cfg.MaxFileSizeInBytes,
		MaxMegabytes: cfg.MaxFileSizeInMegabytes,
	})

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ドメインサービスの初期化
	authService := auth.NewService(userRepo, tokenRepo, auth.ServiceConfig{
		TokenName:  cfg.TokenName,
		TokenTTL:   cfg.TokenTTL,
		BcryptCost: cfg.BcryptCost,
		Location:   cfg.Location,
	})
	todoService := todo.NewService(todoRepo, logRepo, store, collector, cfg.Location)
	profileService := profile.NewService(userRepo, images, cfg.BcryptCost, cfg.Location)

	// 5. ルーターの構築
	limiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth))

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		Authenticator:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		Metrics:           collector,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),
		UploadDir:      files.Dir(),

		BaseURL: cfg.BaseURL,

		AuthService:    authService,
		TodoService:    todoService,
		ProfileService: profileService,
	})

	return &api{
		handler: router,
		closers: []func() error{
			func() error { limiter.Stop(); return nil },
			closeStore,
		},
	}, nil
}

// newCacheStore はCACHE_DRIVERに応じたキャッシュストアを返す。
// redisの場合は起動時に疎通を確認する。
func newCacheStore(ctx context.Context, cfg *config.Config) (cache.Store, func() error, error) {
	if cfg.CacheDriver != "redis" {
		return cache.NewMemoryStore(), func() error { return nil }, nil
	}

	client, err := cache.OpenRedis(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	slog.Info("redis connection established")
	return cache.NewRedisStore(client, cacheKeyPrefix), client.Close, nil
}

// newMailSender はMAIL_DRIVERに応じた送信ドライバを返す。
func newMailSender(cfg *config.Config, logger *slog.Logger) (mail.Sender, error) {
	switch cfg.MailDriver {
	case "smtp":
		sender, err := mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			TLS:      cfg.SMTPTLS,
			Timeout:  cfg.MailTimeout,
		})
		if err != nil {
			return nil, err
		}
		return sender, nil
	case "http":
		guard := security.NewSSRFGuard(endpointPorts(cfg.MailHTTPEndpoint)...)
		sender, err := mail.NewHTTPSender(guard, guard.NewSafeClient(cfg.MailTimeout), cfg.MailHTTPEndpoint, cfg.MailHTTPToken, logger)
		if err != nil {
			return nil, err
		}
		return sender, nil
	default:
		return mail.NewLogSender(logger), nil
	}
}

// endpointPorts はURLに明示されたポートを返す。SSRFガードの許可ポートに追加する。
func endpointPorts(rawURL string) []int {
	u, err := url.Parse(rawURL)
	if err != nil || u.Port() == "" {
		return nil
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		return nil
	}
	return []int{port}
}

// newReminderJob はリマインダー送信ジョブを組み立てる。ログはメール用チャネルに出力する。
func newReminderJob(rt *runtime, db *sql.DB, recorder reminder.Recorder) (*reminder.Job, error) {
	cfg := rt.cfg
	emailLogger := rt.emailLogger()

	sender, err := newMailSender(cfg, emailLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail sender: %w", err)
	}
	composer := mail.NewReminderComposer(cfg.AppName, cfg.AdminEmail, security.NewMailSanitizer())
	todos := repository.NewPostgresTodoRepo(database.Sqlx(db))

	return reminder.NewJob(todos, composer, sender, emailLogger, recorder, cfg.Location), nil
}

// newLogRotateJob はログのバックアップジョブを返す。LOG_DIR未設定時はnilを返す。
func newLogRotateJob(rt *runtime) *logrotate.Job {
	if rt.cfg.LogDir == "" {
		return nil
	}
	return logrotate.NewJob(rt.cfg.LogDir, logChannels, rt.cfg.LogRetentionDays, rt.cfg.Location, slog.Default(), rt.reopeners()...)
}

func newTokenCleanupJob(rt *runtime, db *sql.DB) *cleanup.TokenCleanupJob {
	return cleanup.NewTokenCleanupJob(db, slog.Default(), rt.cfg.Location)
}

// newWorkerScheduler は日次スケジューラを組み立てる。
// リマインダーはREMINDER_RUN_AT、ログのバックアップとトークン削除はTOKEN_CLEANUP_RUN_ATに実行する。
func newWorkerScheduler(rt *runtime, db *sql.DB) (*daily.Scheduler, error) {
	cfg := rt.cfg
	scheduler := daily.NewScheduler(cfg.Location, slog.Default(), nil)

	reminderJob, err := newReminderJob(rt, db, nil)
	if err != nil {
		return nil, err
	}
	if err := scheduler.Add(cfg.ReminderRunAt, reminderJob); err != nil {
		return nil, fmt.Errorf("invalid REMINDER_RUN_AT: %w", err)
	}

	if rotateJob := newLogRotateJob(rt); rotateJob != nil {
		if err := scheduler.Add(cfg.TokenCleanupRunAt, rotateJob); err != nil {
			return nil, fmt.Errorf("invalid TOKEN_CLEANUP_RUN_AT: %w", err)
		}
	}
	if err := scheduler.Add(cfg.TokenCleanupRunAt, newTokenCleanupJob(rt, db)); err != nil {
		return nil, fmt.Errorf("invalid TOKEN_CLEANUP_RUN_AT: %w", err)
	}
	return scheduler, nil
}

// runJobOnce はjobを即時に1回実行する。
func runJobOnce(ctx context.Context, job daily.Job) error {
	return daily.NewScheduler(nil, slog.Default(), nil).RunNow(ctx, job)
}

func runRemind(ctx context.Context, rt *runtime) error {
	db, err := openDatabase(ctx, rt.databaseURL())
	if err != nil {
		return err
	}
	defer db.Close()

	job, err := newReminderJob(rt, db, nil)
	if err != nil {
		return err
	}
	return runJobOnce(ctx, job)
}

func runRotateLogs(ctx context.Context, rt *runtime) error {
	job := newLogRotateJob(rt)
	if job == nil {
		slog.Warn("LOG_DIR is not set, skipping log backup")
		return nil
	}
	return runJobOnce(ctx, job)
}

func runCleanupTokens(ctx context.Context, rt *runtime) error {
	db, err := openDatabase(ctx, rt.databaseURL())
	if err != nil {
		return err
	}
	defer db.Close()

	return runJobOnce(ctx, newTokenCleanupJob(rt, db))
}
