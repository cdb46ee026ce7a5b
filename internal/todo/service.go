// Package todo はTodoの検索、作成、更新、削除と更新履歴の参照を提供する。
// 書き込み後はユーザー単位の一覧キャッシュを削除し、再構築は次の一覧取得に任せる。
package todo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/todoapi/internal/cache"
	"github.com/hitoshi/todoapi/internal/model"
	"github.com/hitoshi/todoapi/internal/repository"
	"github.com/hitoshi/todoapi/internal/validation"
)

// CacheRecorder はキャッシュのヒット・ミスを記録するインターフェース。
// metrics.Collectorの部分集合として定義する。
type CacheRecorder interface {
	RecordCacheHit()
	RecordCacheMiss()
}

type noopRecorder struct{}

func (noopRecorder) RecordCacheHit()  {}
func (noopRecorder) RecordCacheMiss() {}

// Service はTodoに関するビジネスロジックを提供する。
type Service struct {
	todoRepo repository.TodoRepository
	logRepo  repository.TodoLogRepository
	cache    cache.Store
	metrics  CacheRecorder
	location *time.Location
	now      func() time.Time
}

// NewService はServiceを生成する。locationは日付判定とタイムスタンプに使うタイムゾーン。
func NewService(
	todoRepo repository.TodoRepository,
	logRepo repository.TodoLogRepository,
	store cache.Store,
	recorder CacheRecorder,
	location *time.Location,
) *Service {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if location == nil {
		location = time.UTC
	}
	return &Service{
		todoRepo: todoRepo,
		logRepo:  logRepo,
		cache:    store,
		metrics:  recorder,
		location: location,
		now:      time.Now,
	}
}

func (s *Service) clock() time.Time {
	return s.now().In(s.location).Truncate(time.Second)
}

func (s *Service) today() time.Time {
	y, m, d := s.clock().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.location)
}

// List はユーザーのTodo一覧を返す。
// 検索パラメータがない場合はキャッシュを使用し、ミス時は全件を取得して翌日0時まで保存する。
func (s *Service) List(ctx context.Context, userID int64, query validation.Input) ([]model.Todo, error) {
	if !hasListParams(query) {
		return s.listCached(ctx, userID)
	}

	filter, apiErr := parseFilter(query)
	if apiErr != nil {
		return nil, apiErr
	}

	todos, err := s.todoRepo.Search(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search todos: %w", err)
	}
	return todos, nil
}

func (s *Service) listCached(ctx context.Context, userID int64) ([]model.Todo, error) {
	key := cache.TodosKey(userID)

	raw, found, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read todo cache: %w", err)
	}
	if found {
		var todos []model.Todo
		if err := json.Unmarshal(raw, &todos); err == nil {
			s.metrics.RecordCacheHit()
			return todos, nil
		}
		slog.Warn("キャッシュの内容を復元できないため再取得する", slog.String("key", key))
	}
	s.metrics.RecordCacheMiss()

	todos, err := s.todoRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}

	raw, err = json.Marshal(todos)
	if err != nil {
		return nil, fmt.Errorf("failed to encode todo cache: %w", err)
	}
	if err := s.cache.Set(ctx, key, raw, cache.UntilNextDay(s.clock())); err != nil {
		return nil, fmt.Errorf("failed to write todo cache: %w", err)
	}
	return todos, nil
}

// invalidate はユーザーの一覧キャッシュを削除する。新しい値は書き込まない。
func (s *Service) invalidate(ctx context.Context, userID int64) error {
	if err := s.cache.Delete(ctx, cache.TodosKey(userID)); err != nil {
		return fmt.Errorf("failed to invalidate todo cache: %w", err)
	}
	return nil
}

// Create はTodoを作成する。所有者は常に認証済みユーザーとなる。
func (s *Service) Create(ctx context.Context, userID int64, in validation.Input) (*model.Todo, error) {
	req, apiErr := parseCreate(in, s.today)
	if apiErr != nil {
		return nil, apiErr
	}

	now := model.NewTimestamp(s.clock())
	todo := &model.Todo{
		Title:       req.Title,
		Description: req.Description,
		IsComplete:  req.IsComplete,
		UserID:      userID,
		DueDate:     model.NewTimestamp(req.DueDate),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.todoRepo.Create(ctx, todo); err != nil {
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}

	if err := s.invalidate(ctx, userID); err != nil {
		return nil, err
	}

	slog.Info("todo created",
		slog.Int64("user_id", userID),
		slog.Int64("todo_id", todo.ID),
	)
	return todo, nil
}

// findOwned は存在確認の後に所有者を確認する。
func (s *Service) findOwned(ctx context.Context, userID, id int64) (*model.Todo, error) {
	todo, err := s.todoRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find todo: %w", err)
	}
	if todo == nil {
		return nil, model.NewNotFoundError(id)
	}
	if todo.UserID != userID {
		return nil, model.NewForbiddenError()
	}
	return todo, nil
}

// Show は指定IDのTodoを返す。
func (s *Service) Show(ctx context.Context, userID, id int64) (*model.Todo, error) {
	return s.findOwned(ctx, userID, id)
}

// Update は指定されたフィールドのみを更新する。
// 検証、存在確認、所有者確認、更新対象の有無の順に判定する。
func (s *Service) Update(ctx context.Context, userID, id int64, in validation.Input) (*model.Todo, error) {
	changes, apiErr := parseUpdate(in, s.today)
	if apiErr != nil {
		return nil, apiErr
	}

	if _, err := s.findOwned(ctx, userID, id); err != nil {
		return nil, err
	}

	if changes.Empty() {
		return nil, model.NewNothingToUpdateError("Update failed", "todo")
	}

	todo, err := s.todoRepo.Update(ctx, id, changes, model.NewTimestamp(s.clock()))
	if err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}
	if todo == nil {
		// 確認後に別リクエストで削除された
		return nil, model.NewNotFoundError(id)
	}

	if err := s.invalidate(ctx, userID); err != nil {
		return nil, err
	}

	slog.Info("todo updated",
		slog.Int64("user_id", userID),
		slog.Int64("todo_id", id),
	)
	return todo, nil
}

// Delete はTodoを削除する。更新履歴は残る。
func (s *Service) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.findOwned(ctx, userID, id); err != nil {
		return err
	}

	if err := s.todoRepo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}

	if err := s.invalidate(ctx, userID); err != nil {
		return err
	}

	slog.Info("todo deleted",
		slog.Int64("user_id", userID),
		slog.Int64("todo_id", id),
	)
	return nil
}

// AuditTrail は指定IDのTodoについて、ユーザー自身の更新履歴を返す。
// 履歴がない場合は、IDが存在しないか他ユーザーのものかを区別せずNotFoundとする。
func (s *Service) AuditTrail(ctx context.Context, userID, id int64) ([]model.TodoLog, error) {
	logs, err := s.logRepo.ListByOldIDAndUser(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list todo logs: %w", err)
	}
	if len(logs) == 0 {
		return nil, model.NewNotFoundError(id)
	}
	return logs, nil
}
