package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/todoapi/internal/model"
	"github.com/hitoshi/todoapi/internal/security"
)

// allowAllGuard はhttptestサーバー（ループバック）へ接続するためのテスト用SSRFGuard。
type allowAllGuard struct{}

func (allowAllGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (allowAllGuard) ValidateURL(string) error { return nil }

func overdue(id int64, title string) model.OverdueTodo {
	return model.OverdueTodo{
		TodoID:    id,
		Title:     title,
		DueDate:   model.NewTimestamp(time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC)),
		UserID:    7,
		UserName:  "Alice",
		UserEmail: "alice@example.com",
	}
}

func sampleMessage() Message {
	return Message{From: "admin@example.com", To: "alice@example.com", Subject: "hi", Text: "hello", HTML: "<p>hello</p>"}
}

func TestCompose_ListsEveryTodo(t *testing.T) {
	c := NewReminderComposer("todoapi", "admin@example.com", security.NewMailSanitizer())

	msg, err := c.Compose([]model.OverdueTodo{overdue(1, "buy milk"), overdue(2, "walk dog")})
	require.NoError(t, err)

	assert.Equal(t, "admin@example.com", msg.From)
	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, "Alice", msg.ToName)
	assert.Equal(t, "todoapi: You have incomplete todos", msg.Subject)
	assert.Contains(t, msg.HTML, "<td>buy milk</td>")
	assert.Contains(t, msg.HTML, "<td>walk dog</td>")
	assert.Contains(t, msg.HTML, "<td>2024-05-09 00:00:00</td>")

	assert.Contains(t, msg.Text, "Hey,")
	assert.Contains(t, msg.Text, "You have some incomplete todos.")
	assert.Contains(t, msg.Text, "|id|Title|Due date|")
	assert.Contains(t, msg.Text, "|1|buy milk|2024-05-09 00:00:00|")
	assert.Contains(t, msg.Text, "|2|walk dog|2024-05-09 00:00:00|")
	assert.Contains(t, msg.Text, "Thanks,\ntodoapi")
}

func TestCompose_EscapesTitles(t *testing.T) {
	c := NewReminderComposer("todoapi", "admin@example.com", security.NewMailSanitizer())

	msg, err := c.Compose([]model.OverdueTodo{overdue(1, `<script>alert("x")</script>`)})
	require.NoError(t, err)

	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.Text, `<script>alert("x")</script>`, "text version shows the title as typed")
}

func TestCompose_Empty(t *testing.T) {
	c := NewReminderComposer("todoapi", "admin@example.com", security.NewMailSanitizer())
	_, err := c.Compose(nil)
	assert.Error(t, err)
}

func TestMessageValidate(t *testing.T) {
	assert.NoError(t, sampleMessage().Validate())

	noFrom := sampleMessage()
	noFrom.From = ""
	assert.Error(t, noFrom.Validate())

	noTo := sampleMessage()
	noTo.To = ""
	assert.Error(t, noTo.Validate())
}

func TestLogSender_WritesMIME(t *testing.T) {
	var buf bytes.Buffer
	sender := NewLogSender(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, sender.Send(context.Background(), sampleMessage()))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "alice@example.com", entry["to"])
	raw, _ := entry["raw"].(string)
	assert.Contains(t, raw, "Subject: hi")
	assert.Contains(t, raw, "multipart/alternative")
}

func TestLogSender_RejectsInvalidAddress(t *testing.T) {
	sender := NewLogSender(slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)))
	msg := sampleMessage()
	msg.To = "not an address"
	assert.Error(t, sender.Send(context.Background(), msg))
}

func TestHTTPSender_PostsJSON(t *testing.T) {
	var got Message
	var auth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	guard := allowAllGuard{}
	sender, err := NewHTTPSender(guard, guard.NewSafeClient(time.Second), ts.URL, "secret", slog.Default())
	require.NoError(t, err)

	require.NoError(t, sender.Send(context.Background(), sampleMessage()))
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, sampleMessage(), got)
}

func TestHTTPSender_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer ts.Close()

	guard := allowAllGuard{}
	sender, err := NewHTTPSender(guard, guard.NewSafeClient(time.Second), ts.URL, "", slog.Default())
	require.NoError(t, err)

	err = sender.Send(context.Background(), sampleMessage())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "429"))
}

func TestNewHTTPSender_RejectsPrivateEndpoint(t *testing.T) {
	_, err := NewHTTPSender(security.NewSSRFGuard(), http.DefaultClient, "http://169.254.169.254/send", "", slog.Default())
	assert.Error(t, err)
}

func TestNewSMTPSender_RequiresHost(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{})
	assert.Error(t, err)

	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p", TLS: true, Timeout: time.Second})
	require.NoError(t, err)
	assert.Len(t, s.options(), 6)
}
