// Package validation はリクエストパラメータの取得とフィールド単位の検証を提供する。
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

// maxBodyBytes はリクエストボディの上限サイズ（プロフィール画像のdata URLを含む）。
const maxBodyBytes = 16 << 20

// untrimmedFields は前後の空白を除去しないフィールド。
var untrimmedFields = map[string]bool{
	"password":              true,
	"password_confirmation": true,
	"old_password":          true,
}

// ErrInvalidBody はリクエストボディを解析できなかったことを示す。
var ErrInvalidBody = errors.New("request body must be a JSON object or form data")

// Input はリクエストパラメータのフィールド名と値の組。
// 空文字はnilに正規化され、キーの有無はHasで判定する。
type Input map[string]any

// FromRequest はクエリ文字列とボディ（JSONまたはフォーム）からInputを構築する。
// ボディの値はクエリの値より優先する。
func FromRequest(r *http.Request) (Input, error) {
	in := Input{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			in[key] = values[0]
		}
	}

	if r.Body == nil || r.Body == http.NoBody {
		return in.normalize(), nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
		}
		for key, values := range r.PostForm {
			if len(values) > 0 {
				in[key] = values[0]
			}
		}
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
		}
		// ファイルパートは扱わない。写真はdata URLの文字列で受け取る。
		defer r.MultipartForm.RemoveAll()
		for key, values := range r.MultipartForm.Value {
			if len(values) > 0 {
				in[key] = values[0]
			}
		}
	default:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		if len(bytes.TrimSpace(body)) == 0 {
			break
		}
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		var fields map[string]any
		if err := dec.Decode(&fields); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
		}
		for key, v := range fields {
			in[key] = v
		}
	}

	return in.normalize(), nil
}

// normalize は文字列値の前後空白を除去し、空文字をnilに変換する。
func (in Input) normalize() Input {
	for key, v := range in {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if !untrimmedFields[key] {
			s = strings.TrimSpace(s)
		}
		if s == "" {
			in[key] = nil
			continue
		}
		in[key] = s
	}
	return in
}

// Has はキーが存在するかを返す。値がnilでも存在すればtrue。
func (in Input) Has(key string) bool {
	_, ok := in[key]
	return ok
}

// HasAny はいずれかのキーが存在するかを返す。
func (in Input) HasAny(keys ...string) bool {
	for _, k := range keys {
		if in.Has(k) {
			return true
		}
	}
	return false
}

// Only は指定したキーのみを含むInputを返す。
func (in Input) Only(keys ...string) Input {
	out := Input{}
	for _, k := range keys {
		if v, ok := in[k]; ok {
			out[k] = v
		}
	}
	return out
}

// String はキーの値を文字列として返す。文字列以外は文字列表現に変換する。
func (in Input) String(key string) string {
	return stringify(in[key])
}

// Int はキーの値を整数として返す。変換できない場合は0を返す。
func (in Input) Int(key string) int {
	n, _ := toInt(in[key])
	return n
}

// Bool はキーの値を真偽値として解釈する。
// "1" "true" "on" "yes" とtrue、0以外の数値を真とする。
func (in Input) Bool(key string) bool {
	switch v := in[key].(type) {
	case bool:
		return v
	case json.Number:
		f, err := v.Float64()
		return err == nil && f != 0
	case string:
		switch strings.ToLower(v) {
		case "1", "true", "on", "yes":
			return true
		}
	}
	return false
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		if s {
			return "1"
		}
		return ""
	default:
		return fmt.Sprint(s)
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := strconv.Atoi(n.String())
		return i, err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
