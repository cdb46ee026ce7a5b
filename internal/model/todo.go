package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// 日時の入出力フォーマット
const (
	DateTimeLayout = "2006-01-02 15:04:05"
	DateLayout     = "2006-01-02"
)

// Timestamp はタイムゾーンなしのTIMESTAMP列を表す。
// JSONには "YYYY-MM-DD HH:MM:SS" 形式で出力する。
type Timestamp struct {
	time.Time
}

// NewTimestamp はtをTimestampに変換する。
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// MarshalJSON はjson.Marshalerを実装する。
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(DateTimeLayout))
}

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == nil {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(DateTimeLayout, *s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", *s, err)
	}
	t.Time = parsed
	return nil
}

// Scan はsql.Scannerを実装する。
func (t *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
	case time.Time:
		t.Time = v
	case []byte:
		return t.scanString(string(v))
	case string:
		return t.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into Timestamp", src)
	}
	return nil
}

func (t *Timestamp) scanString(s string) error {
	parsed, err := time.Parse(DateTimeLayout, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// Value はdriver.Valuerを実装する。壁時計時刻の文字列として書き込む。
func (t Timestamp) Value() (driver.Value, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.Format(DateTimeLayout), nil
}

// Todo はユーザーが所有するタスクを表す。
// UserIDは作成後に変更しない。
type Todo struct {
	ID          int64     `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	IsComplete  int       `db:"is_complete" json:"is_complete"`
	UserID      int64     `db:"user_id" json:"user_id"`
	DueDate     Timestamp `db:"due_date" json:"due_date"`
	CreatedAt   Timestamp `db:"created_at" json:"created_at"`
	UpdatedAt   Timestamp `db:"updated_at" json:"updated_at"`
}

// TodoLog はTodo更新後の状態のスナップショット。追記のみ行う。
// OldIDの参照先Todoは削除済みの場合がある。
type TodoLog struct {
	ID             int64     `db:"id" json:"id"`
	OldID          int64     `db:"old_id" json:"old_id"`
	OldTitle       string    `db:"old_title" json:"old_title"`
	OldDescription *string   `db:"old_description" json:"old_description"`
	OldIsComplete  int       `db:"old_is_complete" json:"old_is_complete"`
	UserID         int64     `db:"user_id" json:"user_id"`
	OldDueDate     Timestamp `db:"old_due_date" json:"old_due_date"`
	OldCreatedAt   Timestamp `db:"old_created_at" json:"old_created_at"`
	OldUpdatedAt   Timestamp `db:"old_updated_at" json:"old_updated_at"`
	CreatedAt      Timestamp `db:"created_at" json:"created_at"`
}

// OverdueTodo はリマインダー対象の未完了Todoと所有ユーザーの組。
type OverdueTodo struct {
	TodoID    int64     `db:"todo_id"`
	Title     string    `db:"title"`
	DueDate   Timestamp `db:"due_date"`
	UserID    int64     `db:"user_id"`
	UserName  string    `db:"user_name"`
	UserEmail string    `db:"user_email"`
}
