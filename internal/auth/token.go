package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// secretBytes はトークンのシークレット部のバイト数（16進表記で40文字）。
const secretBytes = 20

// plainToken は "<公開ID>|<シークレット>" 形式のBearerトークン。
type plainToken struct {
	PublicID string
	Secret   string
}

// String はクライアントに返すトークン文字列を返す。
func (t plainToken) String() string {
	return t.PublicID + "|" + t.Secret
}

// Hash はシークレット部のSHA-256ハッシュを16進で返す。
func (t plainToken) Hash() string {
	return hashSecret(t.Secret)
}

// newPlainToken は暗号的に安全な新しいトークンを生成する。
func newPlainToken() (plainToken, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return plainToken{}, fmt.Errorf("failed to generate token secret: %w", err)
	}
	return plainToken{
		PublicID: uuid.New().String(),
		Secret:   hex.EncodeToString(b),
	}, nil
}

// parsePlainToken はBearerトークン文字列を分解する。形式が不正な場合はfalseを返す。
func parsePlainToken(s string) (plainToken, bool) {
	publicID, secret, ok := strings.Cut(s, "|")
	if !ok || secret == "" {
		return plainToken{}, false
	}
	if _, err := uuid.Parse(publicID); err != nil {
		return plainToken{}, false
	}
	return plainToken{PublicID: publicID, Secret: secret}, true
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// secretMatches は保存済みハッシュとシークレットを定数時間で比較する。
func secretMatches(storedHash, secret string) bool {
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(hashSecret(secret))) == 1
}
