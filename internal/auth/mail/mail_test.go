package mail

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/hostdesk/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestMessages(t *testing.T) {
	t.Parallel()

	msg := LoginCodeMessage("a@example.com", "123456", 10*time.Minute)
	require.Equal(t, "a@example.com", msg.To)
	require.Contains(t, msg.Body, "123456")
	require.Contains(t, msg.Body, "10 minutes")

	msg = ResetLinkMessage("a@example.com", "https://panel.example.com/reset?token=abc", time.Hour)
	require.Contains(t, msg.Body, "token=abc")
	require.Contains(t, msg.Body, "60 minutes")
}

func TestLogMailerNeverLogsBodyAtInfo(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx := slogx.WithContext(context.Background(), logger)

	require.NoError(t, LogMailer{}.Send(ctx, LoginCodeMessage("a@example.com", "987654", time.Minute)))
	require.Contains(t, buf.String(), "mail_suppressed")
	require.NotContains(t, buf.String(), "987654")
}

func TestSMTPMailerRejectsHeaderInjection(t *testing.T) {
	t.Parallel()

	m := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: 1, From: "panel@example.com"})
	err := m.Send(context.Background(), Message{To: "a@example.com\r\nBcc: evil@example.com", Subject: "x"})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "header injection"))
}

func TestSMTPMailerRender(t *testing.T) {
	t.Parallel()

	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", From: "panel@example.com"})
	raw := string(m.render(Message{To: "a@example.com", Subject: "Hi", Body: "line1\nline2"}))
	require.Contains(t, raw, "From: panel@example.com\r\n")
	require.Contains(t, raw, "Subject: Hi\r\n")
	require.True(t, strings.HasSuffix(raw, "line1\r\nline2"))
}
