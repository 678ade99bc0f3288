package emailsvc

import (
	"bytes"
	"log"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	appfs "github.com/trezcool/academia/fs"
)

func resetMessage() *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: "John Doe", Address: "john@test.cd"}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{"Name": "John Doe", "UID": "dWlk", "Token": "tok-en"},
	}
}

func TestConsoleService(t *testing.T) {
	conf := core.NewTestConfig()
	logger := core.NewStdLogger(nil)
	core.ParseEmailTemplates(appfs.FS, conf, logger)
	ResetSentMessages()

	out := new(bytes.Buffer)
	svc := NewConsoleService(conf, log.New(out, "", 0), logger).(*consoleService)
	svc.sendMessage(resetMessage())

	body := out.String()
	assert.Contains(t, body, "Subject: [Academia] Password Reset")
	assert.Contains(t, body, `To: "John Doe" <john@test.cd>`)
	assert.Contains(t, body, "text/html; charset=utf-8")
	assert.Contains(t, body, "http://localhost:8000/password-reset-confirm?uid=dWlk&token=tok-en")

	msg, ok := LastSentMessage()
	require.True(t, ok)
	assert.Equal(t, "Password Reset", msg.Subject)

	t.Run("no recipients", func(t *testing.T) {
		ResetSentMessages()
		msg := resetMessage()
		msg.To = nil
		svc.sendMessage(msg)
		_, ok := LastSentMessage()
		assert.False(t, ok)
	})
}

func TestConsoleServiceMock(t *testing.T) {
	conf := core.NewTestConfig()
	logger := core.NewStdLogger(nil)
	core.ParseEmailTemplates(appfs.FS, conf, logger)
	ResetSentMessages()

	NewConsoleServiceMock(conf, logger).SendMessages(resetMessage(), &core.EmailMessage{
		To: []mail.Address{{Address: "jane@test.cd"}}, Subject: "Hi", BodyStr: "Hello Jane",
	})
	require.Len(t, SentMessages, 2)
	assert.Equal(t, "Hello Jane", SentMessages[1].TextContent)
}

func TestSendgridService_prepare(t *testing.T) {
	conf := core.NewTestConfig()
	svc := NewSendgridService(conf, core.NewStdLogger(nil)).(*sendgridService)

	msg := core.EmailMessage{
		To:          []mail.Address{{Name: "John Doe", Address: "john@test.cd"}},
		Bcc:         []mail.Address{{Address: "audit@test.cd"}},
		Subject:     "Hi",
		TextContent: "Hello",
	}
	m := svc.prepare(msg)
	assert.Equal(t, "noreply@localhost", m.From.Address)
	assert.Equal(t, "Academia", m.From.Name)
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "[Academia] Hi", m.Personalizations[0].Subject)
	assert.Equal(t, "john@test.cd", m.Personalizations[0].To[0].Address)
	assert.Len(t, m.Personalizations[0].BCC, 1)
	require.Len(t, m.Content, 1, "no html part without html content")
	assert.Equal(t, "text/plain", m.Content[0].Type)
}
