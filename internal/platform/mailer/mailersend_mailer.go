package mailer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendMailer struct {
	client *mailersend.Mailersend
	from   mailersend.From
}

func NewMailerSendMailer(apiKey, fromName, fromEmail string) *MailerSendMailer {
	return &MailerSendMailer{
		client: mailersend.NewMailersend(apiKey),
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}
}

func (m *MailerSendMailer) SendPasswordReset(toEmail, toName, resetURL string) error {
	subject := "Your password reset token (valid for 10 minutes)"
	text := fmt.Sprintf("Forgot your password? Submit a new one at: %s\nIf you didn't forget your password, please ignore this email.", resetURL)
	html := fmt.Sprintf(`<p>Forgot your password? Click <a href="%s">here</a> to set a new one.</p><p>If you didn't forget your password, please ignore this email.</p>`, resetURL)
	return m.send(toEmail, toName, subject, text, html)
}

func (m *MailerSendMailer) SendWelcome(toEmail, toName string) error {
	subject := "Welcome aboard"
	text := fmt.Sprintf("Hi %s, welcome! Your account is ready.", toName)
	html := fmt.Sprintf("<p>Hi %s, welcome! Your account is ready.</p>", toName)
	return m.send(toEmail, toName, subject, text, html)
}

func (m *MailerSendMailer) send(toEmail, toName, subject, text, html string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Name: toName, Email: toEmail}})
	msg.SetSubject(subject)
	msg.SetText(text)
	msg.SetHTML(html)

	res, err := m.client.Email.Send(ctx, msg)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("mailersend error: status=%d body=%s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
