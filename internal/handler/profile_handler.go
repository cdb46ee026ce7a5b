package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/todoapi/internal/model"
	"github.com/hitoshi/todoapi/internal/validation"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	Update(ctx context.Context, user *model.User, in validation.Input) (*model.User, error)
	ChangePassword(ctx context.Context, user *model.User, in validation.Input) (*model.User, error)
}

// ProfileHandler はプロフィール更新のHTTPハンドラー。
type ProfileHandler struct {
	service ProfileServiceInterface
	baseURL string
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface, baseURL string) *ProfileHandler {
	return &ProfileHandler{
		service: service,
		baseURL: baseURL,
	}
}

// Update は名前とプロフィール写真を更新する。
// PUT /api/profile
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	in, ok := readInput(w, r)
	if !ok {
		return
	}

	updated, err := h.service.Update(r.Context(), user, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeList(w, http.StatusOK, []userResponse{toUserResponse(updated, h.baseURL)})
}

// ChangePassword は現在のパスワードを確認してから新しいパスワードに変更する。
// PUT /api/profile/change-password
func (h *ProfileHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	in, ok := readInput(w, r)
	if !ok {
		return
	}

	updated, err := h.service.ChangePassword(r.Context(), user, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{
		Message: "Password update successful",
		Data:    []any{toUserResponse(updated, h.baseURL)},
	})
}
