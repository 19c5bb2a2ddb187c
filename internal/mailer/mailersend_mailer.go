package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendClient struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	enabled bool
}

func NewMailerSend(apiKey, fromName, fromEmail string) *MailerSendClient {
	m := &MailerSendClient{
		enabled: apiKey != "" && fromEmail != "",
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}

	if m.enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}

	return m
}

func (m *MailerSendClient) SendMagicLink(ctx context.Context, ml MagicLink) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}
	c := render(ml)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: ml.Name, Email: ml.To}})
	msg.SetSubject(c.subject)
	msg.SetText(c.text)
	msg.SetHTML(c.html)
	msg.SetTags([]string{string(ml.Purpose)})

	if _, err := m.client.Email.Send(ctx, msg); err != nil {
		return fmt.Errorf("mailersend: %w", err)
	}
	return nil
}
