package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

var ErrEmailNotConfigured = errors.New("smtp host is not configured")

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type EmailClient interface {
	Send(ctx context.Context, to, subject, body string) error
}

type smtpClient struct {
	config EmailConfig
}

func NewEmailClient(config EmailConfig) EmailClient {
	return &smtpClient{config: config}
}

func (c *smtpClient) Send(ctx context.Context, to, subject, body string) error {
	if c.config.Host == "" {
		return ErrEmailNotConfigured
	}

	msg := mail.NewMsg()
	if err := msg.From(c.config.From); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(c.config.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if c.config.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(c.config.Timeout))
	}
	if c.config.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(c.config.Username),
			mail.WithPassword(c.config.Password),
		)
	}

	client, err := mail.NewClient(c.config.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
