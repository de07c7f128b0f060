package email

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Sender delivers one job synchronously.
type Sender interface {
	Send(ctx context.Context, job EmailJob) error
}

type SMTPSender struct {
	From     string
	FromName string
	Host     string
	Port     string
	User     string
	Pass     string
}

func (s *SMTPSender) Send(_ context.Context, job EmailJob) error {
	message := fmt.Sprintf("From: %s <%s>\r\n", s.FromName, s.From)
	message += fmt.Sprintf("To: %s\r\n", job.To)
	message += fmt.Sprintf("Subject: %s\r\n", job.Subject)
	message += "\r\n" + job.Body

	var auth smtp.Auth
	if s.User != "" && s.Pass != "" {
		auth = smtp.PlainAuth("", s.User, s.Pass, s.Host)
	}

	return smtp.SendMail(s.Host+":"+s.Port, auth, s.From, []string{job.To}, []byte(message))
}

type SendGridSender struct {
	client   *sendgrid.Client
	from     string
	fromName string
}

func NewSendGridSender(apiKey, from, fromName string) *SendGridSender {
	return &SendGridSender{
		client:   sendgrid.NewSendClient(apiKey),
		from:     from,
		fromName: fromName,
	}
}

func (s *SendGridSender) Send(ctx context.Context, job EmailJob) error {
	msg := mail.NewSingleEmailPlainText(
		mail.NewEmail(s.fromName, s.from),
		job.Subject,
		mail.NewEmail(job.Name, job.To),
		job.Body,
	)

	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// NewSender picks SendGrid when an API key is configured, SMTP otherwise.
func NewSender(sendGridKey, from, fromName, host, port, user, pass string) Sender {
	if sendGridKey != "" {
		return NewSendGridSender(sendGridKey, from, fromName)
	}
	return &SMTPSender{
		From:     from,
		FromName: fromName,
		Host:     host,
		Port:     port,
		User:     user,
		Pass:     pass,
	}
}
