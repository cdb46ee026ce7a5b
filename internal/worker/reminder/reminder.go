// Package reminder は期限を過ぎた未完了Todoをユーザーごとにまとめてメールで通知するジョブを提供する。
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/todoapi/internal/mail"
	"github.com/hitoshi/todoapi/internal/model"
)

// OverdueLister は指定日が期限の未完了Todoを所有ユーザー付きで返すインターフェース。
// 結果はuser_id順であること。
type OverdueLister interface {
	ListOverdueIncomplete(ctx context.Context, day string) ([]model.OverdueTodo, error)
}

// Composer は1ユーザー分のTodoからメールを組み立てるインターフェース。
type Composer interface {
	Compose(todos []model.OverdueTodo) (mail.Message, error)
}

// Recorder は送信結果を記録するインターフェース。
type Recorder interface {
	RecordReminderSent()
	RecordReminderFailed()
}

type noopRecorder struct{}

func (noopRecorder) RecordReminderSent()   {}
func (noopRecorder) RecordReminderFailed() {}

// Summary はジョブ1回分の結果。
type Summary struct {
	Day    string
	Todos  int
	Users  int
	Sent   int
	Failed int
}

// Job はリマインダー送信ジョブ。
// 送信済みの記録は持たないため、同じ日に再実行すると再送する。
type Job struct {
	todos    OverdueLister
	composer Composer
	sender   mail.Sender
	logger   *slog.Logger
	metrics  Recorder
	location *time.Location
	now      func() time.Time
}

// NewJob はJobを生成する。loggerにはメール用のログチャネルを渡す。
func NewJob(todos OverdueLister, composer Composer, sender mail.Sender, logger *slog.Logger, recorder Recorder, location *time.Location) *Job {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if location == nil {
		location = time.UTC
	}
	return &Job{
		todos:    todos,
		composer: composer,
		sender:   sender,
		logger:   logger,
		metrics:  recorder,
		location: location,
		now:      time.Now,
	}
}

// Name はジョブ名を返す。
func (j *Job) Name() string { return "remind" }

// Run は前日が期限の未完了Todoを通知する。
func (j *Job) Run(ctx context.Context) error {
	_, err := j.Execute(ctx)
	return err
}

// Yesterday はlocationでの前日を "YYYY-MM-DD" で返す。
func Yesterday(now time.Time, loc *time.Location) string {
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d-1, 0, 0, 0, 0, loc).Format(model.DateLayout)
}

// Execute は通知を実行し、結果を返す。
// 1ユーザーへの送信失敗はログに残して次のユーザーへ進み、エラーとしては返さない。
func (j *Job) Execute(ctx context.Context) (Summary, error) {
	day := Yesterday(j.now(), j.location)
	summary := Summary{Day: day}

	todos, err := j.todos.ListOverdueIncomplete(ctx, day)
	if err != nil {
		return summary, fmt.Errorf("failed to list overdue todos: %w", err)
	}
	summary.Todos = len(todos)

	j.logger.Info("期限切れの未完了Todoを取得しました",
		slog.String("day", day),
		slog.Int("todo_count", len(todos)),
	)

	for _, group := range groupByUser(todos) {
		summary.Users++
		email := group[0].UserEmail

		j.logger.Info("リマインダーを送信します",
			slog.Int64("user_id", group[0].UserID),
			slog.String("to", email),
			slog.Int("todo_count", len(group)),
		)

		if err := j.send(ctx, group); err != nil {
			summary.Failed++
			j.metrics.RecordReminderFailed()
			j.logger.Warn("リマインダーの送信に失敗しました",
				slog.Int64("user_id", group[0].UserID),
				slog.String("to", email),
				slog.String("error", err.Error()),
			)
			continue
		}
		summary.Sent++
		j.metrics.RecordReminderSent()
	}

	j.logger.Info("リマインダージョブが完了しました",
		slog.String("day", day),
		slog.Int("users", summary.Users),
		slog.Int("sent", summary.Sent),
		slog.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (j *Job) send(ctx context.Context, group []model.OverdueTodo) error {
	msg, err := j.composer.Compose(group)
	if err != nil {
		return err
	}
	return j.sender.Send(ctx, msg)
}

// groupByUser はTodoをユーザーごとにまとめる。ユーザーの順序は最初に現れた順。
func groupByUser(todos []model.OverdueTodo) [][]model.OverdueTodo {
	index := map[int64]int{}
	var groups [][]model.OverdueTodo
	for _, t := range todos {
		i, ok := index[t.UserID]
		if !ok {
			i = len(groups)
			index[t.UserID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], t)
	}
	return groups
}
