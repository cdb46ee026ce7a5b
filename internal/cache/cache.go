// Package cache はユーザー単位のTodo一覧キャッシュを提供する。
package cache

import (
	"context"
	"strconv"
	"time"
)

// Store はTTL付きのキー・バリューストア。
// Deleteは存在しないキーに対しても成功する。
type Store interface {
	// Get はキーの値を返す。存在しない場合はfoundがfalseになる。
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Set はキーに値をTTL付きで保存する。
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete はキーを削除する。
	Delete(ctx context.Context, key string) error
}

// TodosKey はユーザーのTodo一覧のキャッシュキーを返す。
func TodosKey(userID int64) string {
	return "todos_user_" + strconv.FormatInt(userID, 10)
}

// UntilNextDay はnowのタイムゾーンにおける翌日0時までの残り時間を返す。
// 最短でも1秒とする。
func UntilNextDay(now time.Time) time.Duration {
	y, m, d := now.Date()
	tomorrow := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
	ttl := tomorrow.Sub(now).Truncate(time.Second)
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}
