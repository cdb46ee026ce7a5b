package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/todoapi/internal/middleware"
	"github.com/hitoshi/todoapi/internal/model"
	"github.com/hitoshi/todoapi/internal/validation"
)

// listResponse は一覧・詳細系の成功レスポンス。
type listResponse struct {
	Message string `json:"message"`
	Total   int    `json:"total"`
	Data    any    `json:"data"`
}

// dataResponse はtotalを持たない成功レスポンス。
type dataResponse struct {
	Message string `json:"message"`
	Data    []any  `json:"data"`
}

// tokenData はトークン発行時のdata要素。
type tokenData struct {
	Token string `json:"token"`
}

// userResponse はユーザー情報のAPIレスポンス。
// パスワードハッシュは出力せず、profile_image_urlは参照のたびに算出する。
type userResponse struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	ProfilePhoto    *string         `json:"profile_photo"`
	ProfileImageURL string          `json:"profile_image_url"`
	CreatedAt       model.Timestamp `json:"created_at"`
	UpdatedAt       model.Timestamp `json:"updated_at"`
}

func toUserResponse(u *model.User, baseURL string) userResponse {
	resp := userResponse{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		ProfileImageURL: u.ProfileImageURL(baseURL),
		CreatedAt:       model.NewTimestamp(u.CreatedAt),
		UpdatedAt:       model.NewTimestamp(u.UpdatedAt),
	}
	if u.ProfilePhoto != "" {
		photo := u.ProfilePhoto
		resp.ProfilePhoto = &photo
	}
	return resp
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeList は {"message":"successful","total":n,"data":[...]} を書き込む。
func writeList[T any](w http.ResponseWriter, statusCode int, items []T) {
	if items == nil {
		items = []T{}
	}
	writeJSON(w, statusCode, listResponse{
		Message: "successful",
		Total:   len(items),
		Data:    items,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidationFailed, model.ErrCodeNothingToUpdate, model.ErrCodeUploadFailed:
		return http.StatusBadRequest
	case model.ErrCodeUnauthenticated, model.ErrCodeLoginFailed:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// readInput はリクエストからパラメータを読み込む。
// ボディを解析できない場合は400を書き込みfalseを返す。
func readInput(w http.ResponseWriter, r *http.Request) (validation.Input, bool) {
	in, err := validation.FromRequest(r)
	if err != nil {
		if errors.Is(err, validation.ErrInvalidBody) {
			slog.Warn("invalid request body", slog.String("error", err.Error()))
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError(model.FieldErrors{}))
			return nil, false
		}
		handleServiceError(w, err)
		return nil, false
	}
	return in, true
}

// currentUser は認証ミドルウェアが注入したユーザーを取得する。
// 取得できない場合は401を書き込む。
func currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return nil, false
	}
	return user, true
}

// pathID はURLパラメータidを取得する。ルートで数字に制限しているため、
// 変換できないのは桁あふれの場合のみで、存在しないルートと同じ404を返す。
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewRouteNotFoundError())
		return 0, false
	}
	return id, true
}

// NotFound は存在しないルートへのリクエストに統一フォーマットの404を返す。
func NotFound(w http.ResponseWriter, r *http.Request) {
	middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewRouteNotFoundError())
}

// MethodNotAllowed はルートが対応していないメソッドに405を返す。
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	middleware.WriteErrorResponse(w, http.StatusMethodNotAllowed, model.NewMethodNotAllowedError())
}
