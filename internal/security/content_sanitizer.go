package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// MailSanitizer はメール本文のHTMLを許可リストでサニタイズするインターフェース。
type MailSanitizer interface {
	// Sanitize は許可されたタグのみを残したHTMLを返す。
	Sanitize(rawHTML string) string
}

// mailSanitizer はbluemondayのポリシーを保持する。ポリシーは並行利用できる。
type mailSanitizer struct {
	policy *bluemonday.Policy
}

var _ MailSanitizer = (*mailSanitizer)(nil)

// NewMailSanitizer はリマインダーメール用のポリシーを構築する。
//   - 許可タグ: h1, h2, p, br, strong, em, table, thead, tbody, tr, th, td
//   - 属性は一切許可しない（リンクや画像、style属性を含む）
func NewMailSanitizer() *mailSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"h1", "h2", "p", "br", "strong", "em",
		"table", "thead", "tbody", "tr", "th", "td",
	)
	return &mailSanitizer{policy: p}
}

func (s *mailSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
