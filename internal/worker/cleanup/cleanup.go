// Package cleanup は有効期限を過ぎたBearerトークンの削除ジョブを提供する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// TokenCleanupJob は期限切れトークンを削除するジョブ。
// 期限なしのトークンは対象にしない。削除対象がなくてもエラーにならない。
type TokenCleanupJob struct {
	db       Executor
	logger   *slog.Logger
	location *time.Location
	now      func() time.Time
}

// NewTokenCleanupJob はTokenCleanupJobを生成する。
// locationはexpires_atを保存したときと同じタイムゾーンを渡す。
func NewTokenCleanupJob(db Executor, logger *slog.Logger, location *time.Location) *TokenCleanupJob {
	if location == nil {
		location = time.UTC
	}
	return &TokenCleanupJob{
		db:       db,
		logger:   logger,
		location: location,
		now:      time.Now,
	}
}

// Name はジョブ名を返す。
func (j *TokenCleanupJob) Name() string { return "cleanup-tokens" }

// Run はexpires_atが現在時刻以前のトークンを削除する。
func (j *TokenCleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := j.now().In(j.location).Truncate(time.Second)

	query := `DELETE FROM personal_access_tokens WHERE expires_at IS NOT NULL AND expires_at <= $1`
	result, err := j.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		j.logger.Error("トークンクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("トークンクリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	j.logger.Info("トークンクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}
