// Package model はドメインモデルを定義する。
package model

import (
	"net/url"
	"strings"
	"time"
)

// avatarBaseURL は写真未登録ユーザーのアバター生成サービス。
const avatarBaseURL = "https://ui-avatars.com/api/?name="

// ProfilePhotoPath はアップロード済みプロフィール写真の公開パス。
const ProfilePhotoPath = "/uploads/profile_photos/"

// User はサービス利用ユーザーを表す。
// Emailは常に小文字で保持する。
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	ProfilePhoto string // ファイル名。未登録の場合は空文字
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeEmail はメールアドレスを保存用に正規化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ProfileImageURL はプロフィール画像のURLを算出する。
// 永続化せず、参照のたびに計算する。
func (u *User) ProfileImageURL(baseURL string) string {
	if u.ProfilePhoto == "" {
		return avatarBaseURL + url.QueryEscape(u.Name)
	}
	return strings.TrimRight(baseURL, "/") + ProfilePhotoPath + u.ProfilePhoto
}

// AccessToken はAPIアクセス用のBearerトークンを表す。
// 平文のシークレットは保持せず、SHA-256ハッシュのみを保存する。
type AccessToken struct {
	ID         int64
	PublicID   string
	UserID     int64
	Name       string
	TokenHash  string
	LastUsedAt *time.Time
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}

// Expired はトークンが有効期限切れかどうかを返す。
func (t *AccessToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}
