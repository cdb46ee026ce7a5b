package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/todoapi/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// errorsはフィールド名からメッセージ配列への対応で、該当なしの場合は空オブジェクト。
type ErrorResponseBody struct {
	Message string            `json:"message"`
	Errors  model.FieldErrors `json:"errors"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Message: apiErr.Message,
		Errors:  apiErr.Errors,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
