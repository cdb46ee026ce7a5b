package mail

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// SMTPConfig はSMTPドライバの接続設定。
type SMTPConfig struct {
	Host     string
	Port     int
	Username string // 空の場合は認証しない
	Password string
	TLS      bool // trueならSTARTTLSを必須にする
	Timeout  time.Duration
}

// SMTPSender はgo-mailでSMTPサーバーへ送信するSender実装。
type SMTPSender struct {
	config SMTPConfig
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender はSMTPSenderを生成する。
func NewSMTPSender(config SMTPConfig) (*SMTPSender, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("mail: SMTP host is required")
	}
	return &SMTPSender{config: config}, nil
}

func (s *SMTPSender) options() []gomail.Option {
	opts := []gomail.Option{}
	if s.config.Port > 0 {
		opts = append(opts, gomail.WithPort(s.config.Port))
	}
	if s.config.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(s.config.Timeout))
	}
	if s.config.TLS {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.NoTLS))
	}
	if s.config.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.config.Username),
			gomail.WithPassword(s.config.Password),
		)
	}
	return opts
}

// buildMsg はMessageをgo-mailのメッセージに変換する。
func buildMsg(msg Message) (*gomail.Msg, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	m := gomail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("mail: invalid from address: %w", err)
	}
	if msg.ToName != "" {
		if err := m.AddToFormat(msg.ToName, msg.To); err != nil {
			return nil, fmt.Errorf("mail: invalid to address: %w", err)
		}
	} else if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("mail: invalid to address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(gomail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

// Send は接続、送信、切断を1回で行う。
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := buildMsg(msg)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(s.config.Host, s.options()...)
	if err != nil {
		return fmt.Errorf("mail: failed to create SMTP client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("mail: failed to send via SMTP: %w", err)
	}
	return nil
}
