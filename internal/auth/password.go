package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptMaxBytes はbcryptが評価するパスワードの最大バイト数。
const bcryptMaxBytes = 72

// HashPassword はパスワードをbcryptでハッシュ化する。
// 72バイトを超える部分はbcryptの仕様どおり評価しない。
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword(truncate(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword はパスワードがハッシュと一致するかを返す。
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), truncate(password)) == nil
}

func truncate(password string) []byte {
	b := []byte(password)
	if len(b) > bcryptMaxBytes {
		b = b[:bcryptMaxBytes]
	}
	return b
}
