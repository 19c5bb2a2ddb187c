package mailer

import (
	"context"
	"fmt"
	"html"
	"time"
)

type Purpose string

const (
	PurposeSignIn Purpose = "sign_in"
	PurposeSignUp Purpose = "sign_up"
)

// MagicLink is the mail that carries an access link.
type MagicLink struct {
	To      string
	Name    string
	Link    string
	Purpose Purpose
	TTL     time.Duration
}

type Service interface {
	SendMagicLink(ctx context.Context, m MagicLink) error
}

type content struct {
	subject string
	text    string
	html    string
}

func render(m MagicLink) content {
	subject := "Your Reservou access link"
	intro := "Use the link below to access your account."
	if m.Purpose == PurposeSignUp {
		subject = "Welcome to Reservou"
		intro = "Use the link below to finish creating your account."
	}
	minutes := int(m.TTL.Minutes())

	greeting := "Hi,"
	if m.Name != "" {
		greeting = fmt.Sprintf("Hi %s,", m.Name)
	}

	text := fmt.Sprintf("%s\n\n%s\n\n%s\n\nThis link expires in %d minutes.", greeting, intro, m.Link, minutes)
	body := fmt.Sprintf(`
		<p>%s</p>
		<p>%s</p>
		<p><a href="%s" style="background-color: #0f766e; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px;">Access Reservou</a></p>
		<p>This link expires in %d minutes. If you did not ask for it, ignore this email.</p>
	`, html.EscapeString(greeting), intro, html.EscapeString(m.Link), minutes)

	return content{subject: subject, text: text, html: body}
}
