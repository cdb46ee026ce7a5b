package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"golang.org/x/net/html"

	"github.com/hitoshi/todoapi/internal/model"
	"github.com/hitoshi/todoapi/internal/security"
)

var reminderTemplate = template.Must(template.New("reminder").Parse(`<h1>Hey,</h1>
<p>You have some incomplete todos.</p>
<table>
<thead><tr><th>id</th><th>Title</th><th>Due date</th></tr></thead>
<tbody>
{{- range .Todos}}
<tr><td>{{.TodoID}}</td><td>{{.Title}}</td><td>{{.DueDate.Format "2006-01-02 15:04:05"}}</td></tr>
{{- end}}
</tbody>
</table>
<p>Thanks,<br>{{.AppName}}</p>
`))

// ReminderComposer は期限切れTodoのリマインダーメールを組み立てる。
type ReminderComposer struct {
	appName   string
	from      string
	sanitizer security.MailSanitizer
}

// NewReminderComposer はReminderComposerを生成する。fromは送信元アドレス。
func NewReminderComposer(appName, from string, sanitizer security.MailSanitizer) *ReminderComposer {
	return &ReminderComposer{appName: appName, from: from, sanitizer: sanitizer}
}

// Compose は1ユーザー分のTodoをまとめた1通のメールを返す。
// todosは同一ユーザーのものであること。
func (c *ReminderComposer) Compose(todos []model.OverdueTodo) (Message, error) {
	if len(todos) == 0 {
		return Message{}, fmt.Errorf("mail: no todos to remind")
	}

	var buf bytes.Buffer
	err := reminderTemplate.Execute(&buf, struct {
		AppName string
		Todos   []model.OverdueTodo
	}{c.appName, todos})
	if err != nil {
		return Message{}, fmt.Errorf("mail: failed to render reminder: %w", err)
	}

	body := c.sanitizer.Sanitize(buf.String())
	text, err := htmlToText(body)
	if err != nil {
		return Message{}, err
	}

	return Message{
		From:    c.from,
		To:      todos[0].UserEmail,
		ToName:  todos[0].UserName,
		Subject: c.appName + ": You have incomplete todos",
		Text:    text,
		HTML:    body,
	}, nil
}

// htmlToText はHTML本文からテキスト版を生成する。
// 表のセルはパイプ区切り、ブロック要素と改行タグは改行として出力する。
func htmlToText(body string) (string, error) {
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("mail: failed to parse html: %w", err)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if t := strings.TrimSpace(n.Data); t != "" {
				b.WriteString(t)
			}
			return
		case html.ElementNode:
			switch n.Data {
			case "br":
				b.WriteString("\n")
				return
			case "td", "th":
				b.WriteString("|")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode {
			switch n.Data {
			case "tr":
				b.WriteString("|\n")
			case "h1", "h2", "p", "table":
				b.WriteString("\n\n")
			}
		}
	}
	walk(root)

	return strings.TrimSpace(b.String()) + "\n", nil
}
