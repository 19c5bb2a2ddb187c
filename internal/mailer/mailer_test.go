package mailer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	c := render(MagicLink{
		To:      "ana@example.com",
		Name:    "Ana <b>",
		Link:    "http://localhost:3000/access/abc",
		Purpose: PurposeSignUp,
		TTL:     15 * time.Minute,
	})

	assert.Equal(t, "Welcome to Reservou", c.subject)
	assert.Contains(t, c.text, "http://localhost:3000/access/abc")
	assert.Contains(t, c.text, "15 minutes")
	assert.Contains(t, c.html, "Ana &lt;b&gt;")
	assert.NotContains(t, c.html, "<b>")

	signIn := render(MagicLink{Link: "x", Purpose: PurposeSignIn, TTL: time.Minute})
	assert.Equal(t, "Your Reservou access link", signIn.subject)
	assert.True(t, strings.HasPrefix(signIn.text, "Hi,"))
}

func TestSMTPMailer_BuildMessage(t *testing.T) {
	s := NewSMTPMailer("localhost", 1025, "hey@reservou.xyz", "Reservou", "", "", false)
	msg := string(s.buildMessage("ana@example.com", content{subject: "Hello", text: "plain", html: "<p>rich</p>"}))

	assert.Contains(t, msg, "From: Reservou <hey@reservou.xyz>\r\n")
	assert.Contains(t, msg, "To: ana@example.com\r\n")
	assert.Contains(t, msg, "Subject: Hello\r\n")
	assert.Contains(t, msg, "multipart/alternative")
	assert.Contains(t, msg, "plain")
	assert.Contains(t, msg, "<p>rich</p>")
}

func TestSMTPMailer_RejectsEmptyRecipient(t *testing.T) {
	s := NewSMTPMailer("localhost", 1025, "hey@reservou.xyz", "", "", "", false)
	err := s.SendMagicLink(context.Background(), MagicLink{To: "  "})
	require.Error(t, err)
}

func TestMailerSend_NotConfigured(t *testing.T) {
	m := NewMailerSend("", "Reservou", "hey@reservou.xyz")
	err := m.SendMagicLink(context.Background(), MagicLink{To: "ana@example.com"})
	assert.EqualError(t, err, "MailerSend not configured")
}

func TestDevMailer(t *testing.T) {
	var svc Service = NewDevMailer()
	assert.NoError(t, svc.SendMagicLink(context.Background(), MagicLink{To: "ana@example.com", Link: "x"}))
}
