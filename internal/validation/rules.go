package validation

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/todoapi/internal/model"
)

// Rule はフィールドに適用する1つの検証ルール。
// implicitでないルールはキーが存在しない場合に評価しない。
type Rule struct {
	implicit bool
	numeric  bool
	check    func(c field) string
}

// field はルール評価時のフィールド情報。
type field struct {
	attr    string // メッセージ用の属性名（アンダースコアを空白に置換）
	name    string
	value   any
	present bool
	numeric bool
	input   Input
}

// size は数値ルールを持つフィールドでは数値、それ以外は文字数を返す。
func (f field) size() float64 {
	if f.numeric {
		if n, ok := toFloat(f.value); ok {
			return n
		}
	}
	return float64(utf8.RuneCountInString(stringify(f.value)))
}

func isEmpty(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	case []any:
		return len(s) == 0
	}
	return false
}

// Required はフィールドが存在し空でないことを要求する。
func Required() Rule {
	return Rule{implicit: true, check: func(f field) string {
		if !f.present || isEmpty(f.value) {
			return fmt.Sprintf("The %s field is required.", f.attr)
		}
		return ""
	}}
}

// Filled はフィールドが存在する場合に空でないことを要求する。
func Filled() Rule {
	return Rule{implicit: true, check: func(f field) string {
		if f.present && isEmpty(f.value) {
			return fmt.Sprintf("The %s field must have a value.", f.attr)
		}
		return ""
	}}
}

// String は値が文字列であることを要求する。
func String() Rule {
	return Rule{check: func(f field) string {
		if _, ok := f.value.(string); !ok {
			return fmt.Sprintf("The %s must be a string.", f.attr)
		}
		return ""
	}}
}

// Integer は値が整数であることを要求する。
func Integer() Rule {
	return Rule{numeric: true, check: func(f field) string {
		if _, ok := toInt(f.value); !ok {
			return fmt.Sprintf("The %s must be an integer.", f.attr)
		}
		return ""
	}}
}

// Min は文字数（数値フィールドでは値）の下限を要求する。
func Min(n int) Rule {
	return Rule{check: func(f field) string {
		if f.size() >= float64(n) {
			return ""
		}
		if f.numeric {
			return fmt.Sprintf("The %s must be at least %d.", f.attr, n)
		}
		return fmt.Sprintf("The %s must be at least %d characters.", f.attr, n)
	}}
}

// Max は文字数（数値フィールドでは値）の上限を要求する。
func Max(n int) Rule {
	return Rule{check: func(f field) string {
		if f.size() <= float64(n) {
			return ""
		}
		if f.numeric {
			return fmt.Sprintf("The %s must not be greater than %d.", f.attr, n)
		}
		return fmt.Sprintf("The %s must not be greater than %d characters.", f.attr, n)
	}}
}

// Between は文字数（数値フィールドでは値）が範囲内であることを要求する。
func Between(min, max int) Rule {
	return Rule{check: func(f field) string {
		s := f.size()
		if s >= float64(min) && s <= float64(max) {
			return ""
		}
		if f.numeric {
			return fmt.Sprintf("The %s must be between %d and %d.", f.attr, min, max)
		}
		return fmt.Sprintf("The %s must be between %d and %d characters.", f.attr, min, max)
	}}
}

// DateFormat は値がlayoutに厳密に一致する日時文字列であることを要求する。
// displayはメッセージ中に表示するフォーマット表記。
func DateFormat(layout, display string) Rule {
	return Rule{check: func(f field) string {
		if _, ok := ParseExact(f.value, layout, time.UTC); !ok {
			return fmt.Sprintf("The %s does not match the format %s.", f.attr, display)
		}
		return ""
	}}
}

// AfterOrEqualToday は値が今日の0時以降の日時であることを要求する。
// todayはタイムゾーン込みの今日を返す。値はタイムゾーンを持たない壁時計として比較するため、
// 夏時間の切り替えで存在しない時刻も日付として扱える。
func AfterOrEqualToday(layout string, today func() time.Time) Rule {
	return Rule{check: func(f field) string {
		t, ok := ParseExact(f.value, layout, time.UTC)
		if !ok || t.Before(WallClockDate(today())) {
			return fmt.Sprintf("The %s must be a date after or equal to today.", f.attr)
		}
		return ""
	}}
}

// Email は値がメールアドレス形式であることを要求する。
func Email() Rule {
	return Rule{check: func(f field) string {
		s, ok := f.value.(string)
		if ok {
			if addr, err := mail.ParseAddress(s); err == nil && addr.Address == s {
				return ""
			}
		}
		return fmt.Sprintf("The %s must be a valid email address.", f.attr)
	}}
}

// Confirmed は "<name>_confirmation" フィールドが値と一致することを要求する。
func Confirmed() Rule {
	return Rule{check: func(f field) string {
		confirmation, ok := f.input[f.name+"_confirmation"]
		if !ok || stringify(confirmation) != stringify(f.value) {
			return fmt.Sprintf("The %s confirmation does not match.", f.attr)
		}
		return ""
	}}
}

// Custom は任意の検証関数をルールにする。失敗時はメッセージを返す。
func Custom(fn func(attr string, value any) string) Rule {
	return Rule{check: func(f field) string {
		return fn(f.attr, f.value)
	}}
}

// WallClockDate はtの暦日の0時をUTCの壁時計で返す。
func WallClockDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseExact はvを文字列としてlayoutで解釈し、再フォーマットが一致する場合のみ成功とする。
func ParseExact(v any, layout string, loc *time.Location) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(layout, s, loc)
	if err != nil || t.Format(layout) != s {
		return time.Time{}, false
	}
	return t, true
}

// Validator はフィールドごとにルールを評価し、エラーを収集する。
// あるフィールドの失敗は他のフィールドの評価を止めない。
type Validator struct {
	input  Input
	errors model.FieldErrors
}

// New はinputを検証するValidatorを生成する。
func New(input Input) *Validator {
	return &Validator{input: input}
}

// Field はnameにrulesを順に適用する。失敗したルールのメッセージをすべて記録する。
func (v *Validator) Field(name string, rules ...Rule) *Validator {
	value, present := v.input[name]
	f := field{
		attr:    strings.ReplaceAll(name, "_", " "),
		name:    name,
		value:   value,
		present: present,
		input:   v.input,
	}
	for _, r := range rules {
		if r.numeric {
			f.numeric = true
		}
	}

	for _, r := range rules {
		if !present && !r.implicit {
			continue
		}
		if msg := r.check(f); msg != "" {
			v.errors.Add(name, msg)
			// 必須系ルールが失敗した場合は残りのルールを評価しない
			if r.implicit {
				break
			}
		}
	}
	return v
}

// Fails は1つ以上のフィールドが失敗したかを返す。
func (v *Validator) Fails() bool {
	return v.errors.Len() > 0
}

// Errors は収集したエラーを返す。
func (v *Validator) Errors() model.FieldErrors {
	return v.errors
}
