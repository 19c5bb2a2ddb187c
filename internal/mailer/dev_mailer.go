package mailer

import (
	"context"
	"fmt"

	"github.com/diagnosis/reservou/pkg/logger"
)

// DevMailer prints mails to stdout instead of sending them.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) SendMagicLink(ctx context.Context, m MagicLink) error {
	c := render(m)
	logger.InfoContext(ctx, "[DEV MAIL] magic link",
		"to", m.To,
		"purpose", m.Purpose,
		"link", m.Link,
	)

	fmt.Printf("\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"MAGIC LINK EMAIL (DEV MODE)\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n"+
		"To: %s\n"+
		"Subject: %s\n"+
		"\n"+
		"%s\n"+
		"━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n",
		m.To, c.subject, c.text)

	return nil
}
