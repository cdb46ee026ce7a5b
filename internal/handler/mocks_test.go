package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/todoapi/internal/middleware"
	"github.com/hitoshi/todoapi/internal/model"
	"github.com/hitoshi/todoapi/internal/validation"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn     func(ctx context.Context, in validation.Input) (*model.User, string, error)
	loginFn        func(ctx context.Context, in validation.Input) (string, error)
	logoutFn       func(ctx context.Context, token *model.AccessToken) error
	authenticateFn func(ctx context.Context, bearer string) (*model.User, *model.AccessToken, error)
}

func (m *mockAuthService) Register(ctx context.Context, in validation.Input) (*model.User, string, error) {
	return m.registerFn(ctx, in)
}

func (m *mockAuthService) Login(ctx context.Context, in validation.Input) (string, error) {
	return m.loginFn(ctx, in)
}

func (m *mockAuthService) Logout(ctx context.Context, token *model.AccessToken) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, token)
	}
	return nil
}

func (m *mockAuthService) Authenticate(ctx context.Context, bearer string) (*model.User, *model.AccessToken, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, bearer)
	}
	return nil, nil, nil
}

type mockTodoService struct {
	listFn       func(ctx context.Context, userID int64, query validation.Input) ([]model.Todo, error)
	createFn     func(ctx context.Context, userID int64, in validation.Input) (*model.Todo, error)
	showFn       func(ctx context.Context, userID, id int64) (*model.Todo, error)
	updateFn     func(ctx context.Context, userID, id int64, in validation.Input) (*model.Todo, error)
	deleteFn     func(ctx context.Context, userID, id int64) error
	auditTrailFn func(ctx context.Context, userID, id int64) ([]model.TodoLog, error)
}

func (m *mockTodoService) List(ctx context.Context, userID int64, query validation.Input) ([]model.Todo, error) {
	return m.listFn(ctx, userID, query)
}

func (m *mockTodoService) Create(ctx context.Context, userID int64, in validation.Input) (*model.Todo, error) {
	return m.createFn(ctx, userID, in)
}

func (m *mockTodoService) Show(ctx context.Context, userID, id int64) (*model.Todo, error) {
	return m.showFn(ctx, userID, id)
}

func (m *mockTodoService) Update(ctx context.Context, userID, id int64, in validation.Input) (*model.Todo, error) {
	return m.updateFn(ctx, userID, id, in)
}

func (m *mockTodoService) Delete(ctx context.Context, userID, id int64) error {
	return m.deleteFn(ctx, userID, id)
}

func (m *mockTodoService) AuditTrail(ctx context.Context, userID, id int64) ([]model.TodoLog, error) {
	return m.auditTrailFn(ctx, userID, id)
}

type mockProfileService struct {
	updateFn         func(ctx context.Context, user *model.User, in validation.Input) (*model.User, error)
	changePasswordFn func(ctx context.Context, user *model.User, in validation.Input) (*model.User, error)
}

func (m *mockProfileService) Update(ctx context.Context, user *model.User, in validation.Input) (*model.User, error) {
	return m.updateFn(ctx, user, in)
}

func (m *mockProfileService) ChangePassword(ctx context.Context, user *model.User, in validation.Input) (*model.User, error) {
	return m.changePasswordFn(ctx, user, in)
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// --- ヘルパー ---

var testUser = &model.User{ID: 1, Name: "Alice", Email: "alice@example.com"}

// withUser はテスト用にリクエストコンテキストへユーザーとトークンを注入する。
func withUser(r *http.Request, user *model.User) *http.Request {
	ctx := middleware.ContextWithUser(r.Context(), user, &model.AccessToken{ID: 10, UserID: user.ID})
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}
