// Package mail はメッセージの組み立てと送信ドライバ（SMTP、HTTP API、ログ出力）を提供する。
package mail

import (
	"context"
	"fmt"
)

// Message は送信する1通のメール。HTMLが空の場合はテキストのみで送信する。
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	ToName  string `json:"to_name,omitempty"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html,omitempty"`
}

// Validate は必須項目が揃っているかを検証する。
func (m Message) Validate() error {
	switch {
	case m.From == "":
		return fmt.Errorf("mail: from address is required")
	case m.To == "":
		return fmt.Errorf("mail: to address is required")
	case m.Subject == "":
		return fmt.Errorf("mail: subject is required")
	}
	return nil
}

// Sender はメールを送信するインターフェース。
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
