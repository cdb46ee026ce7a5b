package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/todoapi/internal/model"
	"github.com/hitoshi/todoapi/internal/validation"
)

// TodoServiceInterface はTodoハンドラーが必要とするサービスインターフェース。
type TodoServiceInterface interface {
	List(ctx context.Context, userID int64, query validation.Input) ([]model.Todo, error)
	Create(ctx context.Context, userID int64, in validation.Input) (*model.Todo, error)
	Show(ctx context.Context, userID, id int64) (*model.Todo, error)
	Update(ctx context.Context, userID, id int64, in validation.Input) (*model.Todo, error)
	Delete(ctx context.Context, userID, id int64) error
	AuditTrail(ctx context.Context, userID, id int64) ([]model.TodoLog, error)
}

// TodoHandler はTodo管理と更新履歴のHTTPハンドラー。
type TodoHandler struct {
	service TodoServiceInterface
}

// NewTodoHandler はTodoHandlerを生成する。
func NewTodoHandler(service TodoServiceInterface) *TodoHandler {
	return &TodoHandler{service: service}
}

// Index はTodo一覧を返す。
// GET /api/todos?keyword=&created_at=&updated_at=&due_date=&date_strict=&sort_by=&sort_order=
func (h *TodoHandler) Index(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	in, ok := readInput(w, r)
	if !ok {
		return
	}

	todos, err := h.service.List(r.Context(), user.ID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeList(w, http.StatusOK, todos)
}

// Store はTodoを作成する。リクエストのuser_idは無視する。
// POST /api/todos
func (h *TodoHandler) Store(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	in, ok := readInput(w, r)
	if !ok {
		return
	}

	todo, err := h.service.Create(r.Context(), user.ID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeList(w, http.StatusCreated, []model.Todo{*todo})
}

// Show は指定IDのTodoを返す。
// GET /api/todos/{id}
func (h *TodoHandler) Show(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	todo, err := h.service.Show(r.Context(), user.ID, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeList(w, http.StatusOK, []model.Todo{*todo})
}

// Update は指定されたフィールドのみ更新する。
// PUT /api/todos/{id}
func (h *TodoHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	in, ok := readInput(w, r)
	if !ok {
		return
	}

	todo, err := h.service.Update(r.Context(), user.ID, id, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeList(w, http.StatusOK, []model.Todo{*todo})
}

// Destroy はTodoを削除する。
// DELETE /api/todos/{id}
func (h *TodoHandler) Destroy(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), user.ID, id); err != nil {
		handleServiceError(w, err)
		return
	}
	writeList(w, http.StatusOK, []model.Todo{})
}

// AuditTrail は指定IDのTodoの更新履歴を返す。
// GET /api/audit-trail/{id}
func (h *TodoHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	logs, err := h.service.AuditTrail(r.Context(), user.ID, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeList(w, http.StatusOK, logs)
}
