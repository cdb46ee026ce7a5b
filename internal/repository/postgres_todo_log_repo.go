package repository

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/todoapi/internal/model"
)

// PostgresTodoLogRepo はPostgreSQLを使用した更新履歴リポジトリ。
type PostgresTodoLogRepo struct {
	db *sqlx.DB
}

// NewPostgresTodoLogRepo はPostgresTodoLogRepoを生成する。
func NewPostgresTodoLogRepo(db *sqlx.DB) *PostgresTodoLogRepo {
	return &PostgresTodoLogRepo{db: db}
}

// ListByOldIDAndUser はold_idとuser_idの両方が一致する履歴を返す。
func (r *PostgresTodoLogRepo) ListByOldIDAndUser(ctx context.Context, oldID, userID int64) ([]model.TodoLog, error) {
	query, args, err := psql.Select(
		"id", "old_id", "old_title", "old_description", "old_is_complete",
		"user_id", "old_due_date", "old_created_at", "old_updated_at", "created_at",
	).
		From("todo_logs").
		Where(squirrel.Eq{"old_id": oldID, "user_id": userID}).
		OrderBy("id asc").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build todo log query: %w", err)
	}

	logs := []model.TodoLog{}
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list todo logs: %w", err)
	}
	return logs, nil
}

// compile-time interface check
var _ TodoLogRepository = (*PostgresTodoLogRepo)(nil)
