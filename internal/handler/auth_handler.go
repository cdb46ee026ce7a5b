// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/todoapi/internal/middleware"
	"github.com/hitoshi/todoapi/internal/model"
	"github.com/hitoshi/todoapi/internal/validation"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in validation.Input) (*model.User, string, error)
	Login(ctx context.Context, in validation.Input) (string, error)
	Logout(ctx context.Context, token *model.AccessToken) error
}

// AuthHandler は登録、ログイン、ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	baseURL string
}

// NewAuthHandler はAuthHandlerを生成する。
// baseURLはprofile_image_urlの算出に使用する。
func NewAuthHandler(service AuthServiceInterface, baseURL string) *AuthHandler {
	return &AuthHandler{
		service: service,
		baseURL: baseURL,
	}
}

// Register はユーザー登録とトークン発行を行う。
// POST /api/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	in, ok := readInput(w, r)
	if !ok {
		return
	}

	user, token, err := h.service.Register(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dataResponse{
		Message: "Registration successful",
		Data:    []any{toUserResponse(user, h.baseURL), tokenData{Token: token}},
	})
}

// Login はメールアドレスとパスワードでトークンを発行する。
// POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	in, ok := readInput(w, r)
	if !ok {
		return
	}

	token, err := h.service.Login(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dataResponse{
		Message: "Login successful",
		Data:    []any{tokenData{Token: token}},
	})
}

// Logout は現在のリクエストに使用されたトークンのみを失効させる。
// POST /api/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.TokenFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return
	}

	if err := h.service.Logout(r.Context(), token); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dataResponse{
		Message: "Logout successful",
		Data:    []any{},
	})
}

// User は認証済みユーザーの情報を返す。
// GET /api/user
func (h *AuthHandler) User(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, dataResponse{
		Message: "User data",
		Data:    []any{toUserResponse(user, h.baseURL)},
	})
}
