// Package app はコマンドの組み立てと依存関係のワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/todoapi/internal/config"
	"github.com/hitoshi/todoapi/internal/database"
	"github.com/hitoshi/todoapi/internal/logger"
	"github.com/hitoshi/todoapi/internal/worker/logrotate"
)

// Init はアプリケーションの初期化を行う。
// CONFIG_FILEと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。SIGINTまたはSIGTERMを受信するとコンテキストをキャンセルする。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// runtime は読み込んだ設定とログチャネルをまとめた実行環境。
type runtime struct {
	cfg      *config.Config
	out      io.Writer
	appLog   *logger.FileWriter // LOG_DIR未設定時はnil
	emailLog *logger.FileWriter // LOG_DIR未設定時はnil
}

// newRuntime は設定を読み込み、LOG_DIRが設定されていればapp.logとemail.logを開く。
// アプリケーションログはwとapp.logの両方に出力する。
func newRuntime(w io.Writer) (*runtime, error) {
	if w == nil {
		w = os.Stdout
	}

	cfg, err := Init(w)
	if err != nil {
		return nil, fmt.Errorf("initialization failed: %w", err)
	}

	rt := &runtime{cfg: cfg, out: w}
	if cfg.LogDir == "" {
		return rt, nil
	}

	if rt.appLog, err = logger.Channel(cfg.LogDir, "app"); err != nil {
		return nil, err
	}
	if rt.emailLog, err = logger.Channel(cfg.LogDir, "email"); err != nil {
		rt.appLog.Close()
		return nil, err
	}
	logger.SetupDefault(io.MultiWriter(w, rt.appLog))
	return rt, nil
}

func (rt *runtime) logStart(command string) {
	slog.Info("starting application",
		slog.String("command", command),
		slog.String("port", rt.cfg.ServerPort),
		slog.String("base_url", rt.cfg.BaseURL),
	)
}

// emailLogger はメール用チャネルのロガーを返す。
// LOG_DIR未設定時はアプリケーションログにchannel属性付きで出力する。
func (rt *runtime) emailLogger() *slog.Logger {
	if rt.emailLog == nil {
		return slog.Default().With(slog.String("channel", "email"))
	}
	return logger.Setup(rt.emailLog)
}

// reopeners はログのバックアップ後に開き直すファイルを返す。
func (rt *runtime) reopeners() []logrotate.Reopener {
	var list []logrotate.Reopener
	for _, w := range []*logger.FileWriter{rt.appLog, rt.emailLog} {
		if w != nil {
			list = append(list, w)
		}
	}
	return list
}

// databaseURL はセッションのタイムゾーンをAPP_TIMEZONEにした接続URLを返す。
func (rt *runtime) databaseURL() string {
	return database.WithTimeZone(rt.cfg.DatabaseURL, rt.cfg.Location)
}

// Close はログチャネルを閉じる。
func (rt *runtime) Close() {
	for _, w := range []*logger.FileWriter{rt.appLog, rt.emailLog} {
		if w != nil {
			w.Close()
		}
	}
}

// openDatabase はDB接続を開き、疎通を確認する。テストで差し替える。
var openDatabase = func(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// コンテキストがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, rt *runtime) error {
	db, err := openDatabase(ctx, rt.databaseURL())
	if err != nil {
		return err
	}
	defer db.Close()

	api, err := newAPI(ctx, rt, db)
	if err != nil {
		return err
	}
	defer api.Close()

	server := &http.Server{
		Addr:         ":" + rt.cfg.ServerPort,
		Handler:      api.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 日次スケジューラにリマインダー、ログのバックアップ、トークン削除を登録し、
// コンテキストがキャンセルされるまで実行する。
func runWorker(ctx context.Context, rt *runtime) error {
	db, err := openDatabase(ctx, rt.databaseURL())
	if err != nil {
		return err
	}
	defer db.Close()

	scheduler, err := newWorkerScheduler(rt, db)
	if err != nil {
		return err
	}

	slog.Info("worker starting",
		slog.String("reminder_run_at", rt.cfg.ReminderRunAt),
		slog.String("token_cleanup_run_at", rt.cfg.TokenCleanupRunAt),
	)

	// コンテキストがキャンセルされるまでブロックする
	scheduler.Start(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(_ context.Context, rt *runtime) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(rt.cfg.DatabaseURL)),
	)

	status, err := database.RunMigrations(rt.cfg.DatabaseURL)
	if err != nil {
		slog.Error("database migrations failed",
			slog.Uint64("version", uint64(status.Version)),
			slog.Bool("dirty", status.Dirty),
		)
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(status.Version)),
		slog.Uint64("latest", uint64(status.Latest)),
		slog.Int("applied", status.Applied),
		slog.Bool("dirty", status.Dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, baseURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
