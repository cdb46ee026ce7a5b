// Package daily は登録したジョブを毎日決まった時刻に実行するスケジューラを提供する。
package daily

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Job はスケジューラから実行されるジョブ。
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobRecorder はジョブの実行結果を記録するインターフェース。
type JobRecorder interface {
	RecordJobRun(job string, err error, duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordJobRun(string, error, time.Duration) {}

// entry は実行時刻とジョブの組。
type entry struct {
	hour, minute int
	job          Job
}

// Scheduler はエントリーごとの次回実行時刻を計算し、最も近い時刻まで待機して実行する。
// 同一時刻のジョブは登録順に逐次実行する。
type Scheduler struct {
	entries  []entry
	location *time.Location
	logger   *slog.Logger
	metrics  JobRecorder
	now      func() time.Time
	after    func(d time.Duration) <-chan time.Time
}

// NewScheduler はSchedulerを生成する。locationは実行時刻を解釈するタイムゾーン。
func NewScheduler(location *time.Location, logger *slog.Logger, recorder JobRecorder) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Scheduler{
		location: location,
		logger:   logger,
		metrics:  recorder,
		now:      time.Now,
		after:    time.After,
	}
}

// ParseClock は "HH:MM" 形式の時刻を時と分に分解する。
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock %q (want HH:MM): %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// Add はjobを毎日atに実行するよう登録する。
func (s *Scheduler) Add(at string, job Job) error {
	hour, minute, err := ParseClock(at)
	if err != nil {
		return err
	}
	s.entries = append(s.entries, entry{hour: hour, minute: minute, job: job})
	return nil
}

// NextRun はnow以降で最初に来るhour:minuteの時刻を返す。nowちょうどは翌日とする。
func NextRun(now time.Time, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}

// Start はコンテキストがキャンセルされるまでジョブを実行し続ける。
func (s *Scheduler) Start(ctx context.Context) {
	if len(s.entries) == 0 {
		s.logger.Warn("登録されたジョブがないためスケジューラを起動しない")
		return
	}

	s.logger.Info("日次スケジューラを開始しました",
		slog.Int("job_count", len(s.entries)),
		slog.String("timezone", s.location.String()),
	)

	for {
		at, due := s.upcoming(s.now())
		wait := at.Sub(s.now())
		if wait < 0 {
			wait = 0
		}

		select {
		case <-ctx.Done():
			s.logger.Info("日次スケジューラを停止しました")
			return
		case <-s.after(wait):
			for _, e := range due {
				s.run(ctx, e.job)
			}
		}
	}
}

// upcoming は次回の実行時刻と、その時刻に実行するエントリーを返す。
func (s *Scheduler) upcoming(now time.Time) (time.Time, []entry) {
	type scheduled struct {
		at time.Time
		e  entry
	}
	list := make([]scheduled, 0, len(s.entries))
	for _, e := range s.entries {
		list = append(list, scheduled{at: NextRun(now, e.hour, e.minute, s.location), e: e})
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].at.Before(list[j].at) })

	first := list[0].at
	var due []entry
	for _, sc := range list {
		if sc.at.Equal(first) {
			due = append(due, sc.e)
		}
	}
	return first, due
}

// RunNow はjobを即時に1回実行する。サブコマンドからの単発実行に使う。
func (s *Scheduler) RunNow(ctx context.Context, job Job) error {
	return s.run(ctx, job)
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	start := time.Now()
	err := job.Run(ctx)
	duration := time.Since(start)
	s.metrics.RecordJobRun(job.Name(), err, duration)

	if err != nil {
		s.logger.Error("ジョブの実行に失敗しました",
			slog.String("job", job.Name()),
			slog.String("error", err.Error()),
		)
		return err
	}
	s.logger.Info("ジョブが完了しました",
		slog.String("job", job.Name()),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return nil
}
