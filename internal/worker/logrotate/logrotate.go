// Package logrotate はログファイルの日次バックアップと古いバックアップの削除を行うジョブを提供する。
package logrotate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Reopener はリネーム後にログファイルを開き直すインターフェース。
// logger.FileWriterが実装する。
type Reopener interface {
	Reopen() error
}

// Job は<name>.logを<name>-YYYY-MM-DD.logへ退避し、保持期間を過ぎたバックアップを削除する。
type Job struct {
	dir           string
	channels      []string
	retentionDays int
	reopeners     []Reopener
	logger        *slog.Logger
	location      *time.Location
	now           func() time.Time
}

// NewJob はJobを生成する。channelsは拡張子を除いたログ名（app, email）。
func NewJob(dir string, channels []string, retentionDays int, location *time.Location, logger *slog.Logger, reopeners ...Reopener) *Job {
	if location == nil {
		location = time.UTC
	}
	return &Job{
		dir:           dir,
		channels:      channels,
		retentionDays: retentionDays,
		reopeners:     reopeners,
		logger:        logger,
		location:      location,
		now:           time.Now,
	}
}

// Name はジョブ名を返す。
func (j *Job) Name() string { return "rotate-logs" }

// Run は全チャネルのバックアップを行う。存在しないファイルは何もしない。
func (j *Job) Run(_ context.Context) error {
	today := j.now().In(j.location)
	stamp := today.Format("2006-01-02")
	expired := today.AddDate(0, 0, -j.retentionDays).Format("2006-01-02")

	var errs []error
	for _, name := range j.channels {
		rotated, err := j.rotate(name, stamp)
		if err != nil {
			errs = append(errs, err)
		}

		removed, err := j.remove(name, expired)
		if err != nil {
			errs = append(errs, err)
		}

		j.logger.Info("ログのバックアップを実行しました",
			slog.String("channel", name),
			slog.Bool("rotated", rotated),
			slog.Bool("expired_removed", removed),
		)
	}

	for _, r := range j.reopeners {
		if err := r.Reopen(); err != nil {
			errs = append(errs, fmt.Errorf("failed to reopen log: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (j *Job) path(name, stamp string) string {
	if stamp == "" {
		return filepath.Join(j.dir, name+".log")
	}
	return filepath.Join(j.dir, name+"-"+stamp+".log")
}

// rotate は現在のログを日付付きファイルへ移す。同じ日のバックアップがあれば追記する。
func (j *Job) rotate(name, stamp string) (bool, error) {
	src := j.path(name, "")
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	dst := j.path(name, stamp)

	if _, err := os.Stat(dst); errors.Is(err, os.ErrNotExist) {
		if err := os.Rename(src, dst); err != nil {
			return false, fmt.Errorf("failed to rotate %s: %w", src, err)
		}
		return true, nil
	}

	if err := appendFile(dst, src); err != nil {
		return false, err
	}
	if err := os.Remove(src); err != nil {
		return false, fmt.Errorf("failed to remove %s: %w", src, err)
	}
	return true, nil
}

func (j *Job) remove(name, stamp string) (bool, error) {
	err := os.Remove(j.path(name, stamp))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to remove expired log: %w", err)
	}
	return true, nil
}

func appendFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to append %s: %w", src, err)
	}
	return out.Close()
}
