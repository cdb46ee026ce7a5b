// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/todoapi/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userContextKey  = contextKey("user")
	tokenContextKey = contextKey("access_token")
)

// TokenAuthenticator はBearerトークンの検証に必要なインターフェース。
// auth.Serviceの部分集合として定義する。
type TokenAuthenticator interface {
	// Authenticate はトークンが無効な場合にnilのユーザーを返す。
	Authenticate(ctx context.Context, bearer string) (*model.User, *model.AccessToken, error)
}

// NewBearerAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証するミドルウェアを返す。
// 認証済みユーザーと使用されたトークンをリクエストコンテキストに注入する。
// 未認証リクエストには401を返す。
func NewBearerAuthMiddleware(authenticator TokenAuthenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearer, ok := bearerToken(r)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			user, token, err := authenticator.Authenticate(r.Context(), bearer)
			if err != nil {
				slog.Error("failed to authenticate token",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if user == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			recordUserID(r.Context(), user.ID)
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user, token)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	return user, ok && user != nil
}

// TokenFromContext はリクエストに使用されたトークンを取得する。
func TokenFromContext(ctx context.Context) (*model.AccessToken, bool) {
	token, ok := ctx.Value(tokenContextKey).(*model.AccessToken)
	return token, ok && token != nil
}

// ContextWithUser はコンテキストにユーザーとトークンを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User, token *model.AccessToken) context.Context {
	ctx = context.WithValue(ctx, userContextKey, user)
	return context.WithValue(ctx, tokenContextKey, token)
}
