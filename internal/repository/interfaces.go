// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/todoapi/internal/model"
)

// ErrDuplicateEmail はメールアドレスが既に登録されていることを示す。
var ErrDuplicateEmail = errors.New("email already registered")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail は小文字化済みのメールアドレスでユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// EmailExists はメールアドレスが登録済みかを返す。
	EmailExists(ctx context.Context, email string) (bool, error)

	// Create はユーザーを作成し、採番されたIDをuser.IDに設定する。
	// メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateProfile は名前とプロフィール写真のファイル名を更新する。
	UpdateProfile(ctx context.Context, user *model.User) error

	// UpdatePassword はパスワードハッシュを更新する。
	UpdatePassword(ctx context.Context, userID int64, passwordHash string, updatedAt time.Time) error
}

// TokenRepository はBearerトークンの永続化インターフェース。
type TokenRepository interface {
	// Create はトークンを作成し、採番されたIDをtoken.IDに設定する。
	Create(ctx context.Context, token *model.AccessToken) error

	// FindByPublicID は公開IDでトークンを取得する。見つからない場合はnilを返す。
	FindByPublicID(ctx context.Context, publicID string) (*model.AccessToken, error)

	// Touch はトークンの最終利用日時を更新する。
	Touch(ctx context.Context, id int64, usedAt time.Time) error

	// DeleteByID は指定IDのトークンのみを削除する。
	DeleteByID(ctx context.Context, id int64) error
}

// 並び替えに使用できる列と方向
var (
	TodoSortColumns = []string{"id", "title", "due_date", "created_at", "updated_at"}
	SortOrders      = []string{"asc", "desc"}
)

// TodoFilter はTodo一覧の検索条件。
// 日付は "YYYY-MM-DD" 形式で、空文字は条件なしを表す。
type TodoFilter struct {
	Keyword    *string
	CreatedAt  string
	UpdatedAt  string
	DueDate    string
	DateStrict bool   // trueなら日付一致、falseなら指定日以降
	SortBy     string // TodoSortColumnsのいずれか
	SortOrder  string // SortOrdersのいずれか
}

// TodoChanges はTodoの部分更新内容。nilのフィールドは更新しない。
type TodoChanges struct {
	Title       *string
	Description *string
	IsComplete  *int
	DueDate     *model.Timestamp
}

// Empty は更新対象のフィールドが1つもないかを返す。
func (c TodoChanges) Empty() bool {
	return c.Title == nil && c.Description == nil && c.IsComplete == nil && c.DueDate == nil
}

// TodoRepository はTodoの永続化インターフェース。
type TodoRepository interface {
	// ListByUser はユーザーの全Todoをid昇順で返す。
	ListByUser(ctx context.Context, userID int64) ([]model.Todo, error)

	// Search は検索条件に一致するユーザーのTodoを返す。
	Search(ctx context.Context, userID int64, filter TodoFilter) ([]model.Todo, error)

	// FindByID は指定IDのTodoを取得する。所有者は確認しない。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Todo, error)

	// Create はTodoを作成し、保存後の行でtodoを上書きする。
	Create(ctx context.Context, todo *model.Todo) error

	// Update は指定フィールドとupdated_atを更新し、更新後の行を返す。
	// 更新はストレージ側のトリガーによりtodo_logsへ記録される。
	Update(ctx context.Context, id int64, changes TodoChanges, updatedAt model.Timestamp) (*model.Todo, error)

	// DeleteByID は指定IDのTodoを削除する。todo_logsは削除しない。
	DeleteByID(ctx context.Context, id int64) error

	// ListOverdueIncomplete は期限日がdayの未完了Todoを所有ユーザー付きで返す。
	// user_id、id の順に並ぶ。
	ListOverdueIncomplete(ctx context.Context, day string) ([]model.OverdueTodo, error)
}

// TodoLogRepository は更新履歴の参照インターフェース。
// 書き込みはストレージ側のトリガーのみが行う。
type TodoLogRepository interface {
	// ListByOldIDAndUser はold_idとuser_idの両方が一致する履歴をid昇順で返す。
	ListByOldIDAndUser(ctx context.Context, oldID, userID int64) ([]model.TodoLog, error)
}
