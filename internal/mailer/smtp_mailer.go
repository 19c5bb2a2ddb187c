package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/google/uuid"
)

type SMTPMailer struct {
	Host     string
	Port     int
	From     string
	FromName string
	User     string
	Pass     string
	UseTLS   bool
}

func NewSMTPMailer(host string, port int, from, fromName, user, pass string, useTLS bool) *SMTPMailer {
	return &SMTPMailer{
		Host:     strings.TrimSpace(host),
		Port:     port,
		From:     strings.TrimSpace(from),
		FromName: strings.TrimSpace(fromName),
		User:     strings.TrimSpace(user),
		Pass:     strings.TrimSpace(pass),
		UseTLS:   useTLS,
	}
}

func (s *SMTPMailer) SendMagicLink(ctx context.Context, m MagicLink) error {
	to := strings.TrimSpace(m.To)
	if to == "" {
		return fmt.Errorf("empty recipient email")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.send(to, s.buildMessage(to, render(m)))
}

func (s *SMTPMailer) buildMessage(to string, c content) []byte {
	var buf bytes.Buffer
	boundary := "reservou-" + uuid.NewString()

	from := s.From
	if s.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.FromName), s.From)
	}

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", c.subject))
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", boundary)

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n\r\n", c.text)

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	fmt.Fprintf(&buf, "Content-Type: text/html; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&buf, "%s\r\n\r\n", c.html)

	fmt.Fprintf(&buf, "--%s--\r\n", boundary)
	return buf.Bytes()
}

func (s *SMTPMailer) send(to string, msg []byte) error {
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)

	// Mailpit or development SMTP (no auth, no TLS)
	if !s.UseTLS && s.User == "" {
		return smtp.SendMail(addr, nil, s.From, []string{to}, msg)
	}

	var auth smtp.Auth
	if s.User != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}

	// STARTTLS when the server offers it
	err := smtp.SendMail(addr, auth, s.From, []string{to}, msg)
	if err == nil || !s.UseTLS {
		return err
	}

	// Implicit TLS (port 465)
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.Host})
	if err != nil {
		return err
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		return err
	}
	defer c.Quit()

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(s.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}
