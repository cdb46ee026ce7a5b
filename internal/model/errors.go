// Package model はドメインモデルを定義する。
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FieldErrors はフィールド名ごとのエラーメッセージ列を保持する。
// 追加した順序を保ち、JSONにもその順序で出力する。
type FieldErrors struct {
	fields   []string
	messages map[string][]string
}

// Add はフィールドにエラーメッセージを追加する。
func (f *FieldErrors) Add(field, message string) {
	if f.messages == nil {
		f.messages = make(map[string][]string)
	}
	if _, ok := f.messages[field]; !ok {
		f.fields = append(f.fields, field)
	}
	f.messages[field] = append(f.messages[field], message)
}

// Merge は別のFieldErrorsの内容を順序を保って追加する。
func (f *FieldErrors) Merge(other FieldErrors) {
	for _, field := range other.fields {
		for _, msg := range other.messages[field] {
			f.Add(field, msg)
		}
	}
}

// Len はエラーを持つフィールド数を返す。
func (f FieldErrors) Len() int {
	return len(f.fields)
}

// Fields はエラーを持つフィールド名を追加順で返す。
func (f FieldErrors) Fields() []string {
	return append([]string(nil), f.fields...)
}

// Get は指定フィールドのエラーメッセージを返す。
func (f FieldErrors) Get(field string) []string {
	return f.messages[field]
}

// MarshalJSON はフィールドの追加順を保ったJSONオブジェクトを出力する。
func (f FieldErrors) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(field)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.messages[field])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// NewFieldErrors は1フィールド分のエラーを持つFieldErrorsを生成する。
func NewFieldErrors(field string, messages ...string) FieldErrors {
	var f FieldErrors
	for _, m := range messages {
		f.Add(field, m)
	}
	return f
}

// APIError は統一エラーフォーマットを表す。
// Codeでステータスコードが決まり、MessageとErrorsがレスポンスに出力される。
type APIError struct {
	Code    string      // エラーコード
	Message string      // エラーメッセージ
	Errors  FieldErrors // フィールド別の詳細
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeUnauthenticated  = "UNAUTHENTICATED"
	ErrCodeLoginFailed      = "LOGIN_FAILED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	ErrCodeNothingToUpdate  = "NOTHING_TO_UPDATE"
	ErrCodeUploadFailed     = "UPLOAD_FAILED"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// NewValidationError はリクエストパラメータの検証エラーを生成する。
func NewValidationError(errs FieldErrors) *APIError {
	return &APIError{
		Code:    ErrCodeValidationFailed,
		Message: "Invalid request params",
		Errors:  errs,
	}
}

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:    ErrCodeUnauthenticated,
		Message: "Unauthenticated.",
	}
}

// NewLoginFailedError はログイン失敗エラーを生成する。
// keyはemail_passwordまたはcredentials。
func NewLoginFailedError(key string) *APIError {
	return &APIError{
		Code:    ErrCodeLoginFailed,
		Message: "Login failed",
		Errors:  NewFieldErrors(key, "Invalid email or password"),
	}
}

// NewForbiddenError は他ユーザーのリソースへのアクセスエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:    ErrCodeForbidden,
		Message: "Access denied",
	}
}

// NewNotFoundError は指定IDのリソースが存在しない場合のエラーを生成する。
func NewNotFoundError(id int64) *APIError {
	return &APIError{
		Code:    ErrCodeNotFound,
		Message: "Not found",
		Errors:  NewFieldErrors("id", fmt.Sprintf("Requested resource with id %d not found", id)),
	}
}

// NewRouteNotFoundError は存在しないルートへのアクセスエラーを生成する。
func NewRouteNotFoundError() *APIError {
	return &APIError{
		Code:    ErrCodeNotFound,
		Message: "Not found",
	}
}

// NewMethodNotAllowedError はルートが対応していないメソッドへのアクセスエラーを生成する。
func NewMethodNotAllowedError() *APIError {
	return &APIError{
		Code:    ErrCodeMethodNotAllowed,
		Message: "Method not allowed",
	}
}

// NewNothingToUpdateError は更新対象のフィールドが1つもない場合のエラーを生成する。
func NewNothingToUpdateError(message, key string) *APIError {
	return &APIError{
		Code:    ErrCodeNothingToUpdate,
		Message: message,
		Errors:  NewFieldErrors(key, "No data to update"),
	}
}

// NewUploadFailedError は画像アップロードの失敗エラーを生成する。
func NewUploadFailedError(reason string) *APIError {
	return &APIError{
		Code:    ErrCodeUploadFailed,
		Message: "Image upload failed",
		Errors:  NewFieldErrors("image_format", reason),
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:    ErrCodeRateLimited,
		Message: "Too Many Attempts.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:    ErrCodeInternal,
		Message: "Server Error",
	}
}
