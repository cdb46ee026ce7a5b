package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/todoapi/internal/security"
)

// maxErrorBody はエラー時にログへ残すレスポンスボディの上限。
const maxErrorBody = 1024

// HTTPSender はメール配信APIへJSONでPOSTするSender実装。
// 2xx以外のステータスは送信失敗とする。
type HTTPSender struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	token      string
}

var _ Sender = (*HTTPSender)(nil)

// NewHTTPSender はendpointを検証した上でHTTPSenderを生成する。
// httpClientにはSSRF防止付きのクライアントを渡す。
func NewHTTPSender(guard security.SSRFGuard, httpClient *http.Client, endpoint, token string, logger *slog.Logger) (*HTTPSender, error) {
	if err := guard.ValidateURL(endpoint); err != nil {
		return nil, fmt.Errorf("mail: invalid HTTP endpoint: %w", err)
	}
	return &HTTPSender{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		token:      token,
	}, nil
}

func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("mail: failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mail: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "todoapi-mailer/1.0")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mail: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		s.logger.Error("メール配信APIがエラーステータスを返した",
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", string(snippet)),
		)
		return fmt.Errorf("mail: endpoint returned status %d", resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
