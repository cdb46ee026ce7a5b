package repository

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/todoapi/internal/model"
)

// todoColumns はtodosテーブルの取得列。model.Todoのdbタグと対応する。
var todoColumns = []string{
	"id", "title", "description", "is_complete", "user_id", "due_date", "created_at", "updated_at",
}

// likeEscaper はLIKEパターンのメタ文字をエスケープする。
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// psql はPostgreSQL用のプレースホルダ形式を使うクエリビルダ。
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// PostgresTodoRepo はPostgreSQLを使用したTodoリポジトリ。
type PostgresTodoRepo struct {
	db *sqlx.DB
}

// NewPostgresTodoRepo はPostgresTodoRepoを生成する。
func NewPostgresTodoRepo(db *sqlx.DB) *PostgresTodoRepo {
	return &PostgresTodoRepo{db: db}
}

// ListByUser はユーザーの全Todoをid昇順で返す。
func (r *PostgresTodoRepo) ListByUser(ctx context.Context, userID int64) ([]model.Todo, error) {
	return r.Search(ctx, userID, TodoFilter{})
}

// Search は検索条件に一致するユーザーのTodoを返す。
// キーワードはタイトルまたは説明文への部分一致（大文字小文字を区別しない）で、
// 条件は必ずuser_idの範囲内に限定される。
func (r *PostgresTodoRepo) Search(ctx context.Context, userID int64, filter TodoFilter) ([]model.Todo, error) {
	q := psql.Select(todoColumns...).
		From("todos").
		Where(squirrel.Eq{"user_id": userID})

	if filter.Keyword != nil {
		pattern := "%" + likeEscaper.Replace(*filter.Keyword) + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"title": pattern},
			squirrel.ILike{"description": pattern},
		})
	}

	dateFilters := []struct {
		column string
		value  string
	}{
		{"created_at", filter.CreatedAt},
		{"updated_at", filter.UpdatedAt},
		{"due_date", filter.DueDate},
	}
	for _, f := range dateFilters {
		if f.value == "" {
			continue
		}
		if filter.DateStrict {
			q = q.Where(squirrel.Expr(f.column+"::date = ?", f.value))
		} else {
			q = q.Where(squirrel.GtOrEq{f.column: f.value})
		}
	}

	q = q.OrderBy(orderClause(filter.SortBy, filter.SortOrder))

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build todo search query: %w", err)
	}

	todos := []model.Todo{}
	if err := r.db.SelectContext(ctx, &todos, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search todos: %w", err)
	}
	return todos, nil
}

// orderClause は許可リストに含まれる列と方向からORDER BY句を組み立てる。
// 許可されない値はid・ascにフォールバックする。
func orderClause(sortBy, sortOrder string) string {
	if !slices.Contains(TodoSortColumns, sortBy) {
		sortBy = "id"
	}
	if !slices.Contains(SortOrders, sortOrder) {
		sortOrder = "asc"
	}
	return sortBy + " " + sortOrder
}

// FindByID は指定IDのTodoを取得する。見つからない場合はnilを返す。
func (r *PostgresTodoRepo) FindByID(ctx context.Context, id int64) (*model.Todo, error) {
	query, args, err := psql.Select(todoColumns...).
		From("todos").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build todo query: %w", err)
	}

	todo := &model.Todo{}
	err = r.db.GetContext(ctx, todo, query, args...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find todo by ID: %w", err)
	}
	return todo, nil
}

// Create はTodoを作成し、保存後の行でtodoを上書きする。
func (r *PostgresTodoRepo) Create(ctx context.Context, todo *model.Todo) error {
	query, args, err := psql.Insert("todos").
		Columns("title", "description", "is_complete", "user_id", "due_date", "created_at", "updated_at").
		Values(todo.Title, todo.Description, todo.IsComplete, todo.UserID, todo.DueDate, todo.CreatedAt, todo.UpdatedAt).
		Suffix("RETURNING " + strings.Join(todoColumns, ", ")).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build todo insert: %w", err)
	}

	if err := r.db.QueryRowxContext(ctx, query, args...).StructScan(todo); err != nil {
		return fmt.Errorf("failed to insert todo: %w", err)
	}
	return nil
}

// Update は指定フィールドとupdated_atを更新し、更新後の行を返す。
// 対象行が存在しない場合はnilを返す。
func (r *PostgresTodoRepo) Update(ctx context.Context, id int64, changes TodoChanges, updatedAt model.Timestamp) (*model.Todo, error) {
	set := map[string]any{"updated_at": updatedAt}
	if changes.Title != nil {
		set["title"] = *changes.Title
	}
	if changes.Description != nil {
		set["description"] = *changes.Description
	}
	if changes.IsComplete != nil {
		set["is_complete"] = *changes.IsComplete
	}
	if changes.DueDate != nil {
		set["due_date"] = *changes.DueDate
	}

	query, args, err := psql.Update("todos").
		SetMap(set).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(todoColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build todo update: %w", err)
	}

	todo := &model.Todo{}
	err = r.db.QueryRowxContext(ctx, query, args...).StructScan(todo)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update todo: %w", err)
	}
	return todo, nil
}

// DeleteByID は指定IDのTodoを削除する。
func (r *PostgresTodoRepo) DeleteByID(ctx context.Context, id int64) error {
	query, args, err := psql.Delete("todos").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build todo delete: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}
	return nil
}

// ListOverdueIncomplete は期限日（日付部分）がdayの未完了Todoを所有ユーザー付きで返す。
func (r *PostgresTodoRepo) ListOverdueIncomplete(ctx context.Context, day string) ([]model.OverdueTodo, error) {
	query, args, err := psql.Select(
		"t.id AS todo_id",
		"t.title",
		"t.due_date",
		"u.id AS user_id",
		"u.name AS user_name",
		"u.email AS user_email",
	).
		From("todos t").
		Join("users u ON u.id = t.user_id").
		Where(squirrel.Eq{"t.is_complete": 0}).
		Where(squirrel.Expr("t.due_date::date = ?", day)).
		OrderBy("t.user_id asc", "t.id asc").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build overdue query: %w", err)
	}

	rows := []model.OverdueTodo{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list overdue todos: %w", err)
	}
	return rows, nil
}

// compile-time interface check
var _ TodoRepository = (*PostgresTodoRepo)(nil)
