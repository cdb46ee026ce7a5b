package todo

import (
	"time"

	"github.com/hitoshi/todoapi/internal/model"
	"github.com/hitoshi/todoapi/internal/repository"
	v "github.com/hitoshi/todoapi/internal/validation"
)

// dateTimeFormat はdue_dateのメッセージ用フォーマット表記。
const (
	dateTimeFormat = "Y-m-d H:i:s"
	dateFormat     = "Y-m-d"
)

// listParams は一覧取得でキャッシュを迂回させるクエリパラメータ。
var listParams = []string{"keyword", "created_at", "updated_at", "due_date", "date_strict", "sort_by", "sort_order"}

// CreateRequest は作成時に受け付けるフィールド。user_idは受け付けない。
type CreateRequest struct {
	Title       string
	Description string
	IsComplete  int
	DueDate     time.Time
}

// parseCreate は作成リクエストを検証する。全フィールドのエラーをまとめて返す。
func parseCreate(in v.Input, today func() time.Time) (CreateRequest, *model.APIError) {
	validator := v.New(in).
		Field("title", v.Required(), v.Min(2), v.Max(100)).
		Field("description", v.Required()).
		Field("is_complete", v.Required(), v.Integer(), v.Between(0, 1)).
		Field("due_date", v.Required(),
			v.DateFormat(model.DateTimeLayout, dateTimeFormat),
			v.AfterOrEqualToday(model.DateTimeLayout, today))
	if validator.Fails() {
		return CreateRequest{}, model.NewValidationError(validator.Errors())
	}

	due, _ := v.ParseExact(in["due_date"], model.DateTimeLayout, time.UTC)
	return CreateRequest{
		Title:       in.String("title"),
		Description: in.String("description"),
		IsComplete:  in.Int("is_complete"),
		DueDate:     due,
	}, nil
}

// parseUpdate は部分更新リクエストを検証する。
// 指定されたフィールドのみを検証し、descriptionは検証せずに受け付ける。
func parseUpdate(in v.Input, today func() time.Time) (repository.TodoChanges, *model.APIError) {
	validator := v.New(in)
	var changes repository.TodoChanges

	if in.Has("title") {
		validator.Field("title", v.Filled(), v.String(), v.Min(1), v.Max(100))
		title := in.String("title")
		changes.Title = &title
	}
	if in.Has("description") {
		description := in.String("description")
		changes.Description = &description
	}
	if in.Has("is_complete") {
		validator.Field("is_complete", v.Filled(), v.Integer(), v.Between(0, 1))
		done := in.Int("is_complete")
		changes.IsComplete = &done
	}
	if in.Has("due_date") {
		validator.Field("due_date", v.Filled(),
			v.DateFormat(model.DateTimeLayout, dateTimeFormat),
			v.AfterOrEqualToday(model.DateTimeLayout, today))
		due, _ := v.ParseExact(in["due_date"], model.DateTimeLayout, time.UTC)
		ts := model.NewTimestamp(due)
		changes.DueDate = &ts
	}

	if validator.Fails() {
		return repository.TodoChanges{}, model.NewValidationError(validator.Errors())
	}
	return changes, nil
}

// parseFilter は一覧の検索条件を検証する。
// 日付条件はすべて検証してからまとめてエラーを返し、並び替えの不正値は既定値に戻す。
func parseFilter(in v.Input) (repository.TodoFilter, *model.APIError) {
	validator := v.New(in).
		Field("created_at", v.DateFormat(model.DateLayout, dateFormat)).
		Field("updated_at", v.DateFormat(model.DateLayout, dateFormat)).
		Field("due_date", v.DateFormat(model.DateLayout, dateFormat))
	if validator.Fails() {
		return repository.TodoFilter{}, model.NewValidationError(validator.Errors())
	}

	filter := repository.TodoFilter{
		CreatedAt:  in.String("created_at"),
		UpdatedAt:  in.String("updated_at"),
		DueDate:    in.String("due_date"),
		DateStrict: in.Bool("date_strict"),
		SortBy:     in.String("sort_by"),
		SortOrder:  in.String("sort_order"),
	}
	if in.Has("keyword") {
		keyword := in.String("keyword")
		filter.Keyword = &keyword
	}
	return filter, nil
}

// hasListParams は一覧取得のクエリパラメータが1つでも指定されているかを返す。
func hasListParams(in v.Input) bool {
	return in.HasAny(listParams...)
}
