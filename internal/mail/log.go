package mail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
)

// LogSender は送信せずにMIME形式のメッセージをログへ出力するSender実装。
// 開発環境とテストで使用する。
type LogSender struct {
	logger *slog.Logger
}

var _ Sender = (*LogSender)(nil)

// NewLogSender はLogSenderを生成する。
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	m, err := buildMsg(msg)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return fmt.Errorf("mail: failed to render message: %w", err)
	}

	s.logger.Info("mail sent",
		slog.String("driver", "log"),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("raw", buf.String()),
	)
	return nil
}
