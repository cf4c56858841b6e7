package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"member-onboarding/pkg/utils"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// SMTPSender delivers templated token emails over SMTP.
type SMTPSender struct {
	client  *mail.Client
	from    string
	baseURL string
	log     *zap.Logger
}

func NewSMTPSender(config utils.EmailConfig, baseURL string, log *zap.Logger) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(config.Port),
		mail.WithTimeout(30 * time.Second),
	}

	// Only add authentication if username and password are provided
	if config.User != "" && config.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(config.User),
			mail.WithPassword(config.Password),
		)
	}

	if config.TLS {
		opts = append(opts,
			mail.WithTLSConfig(&tls.Config{ServerName: config.Host, MinVersion: tls.VersionTLS12}),
			mail.WithTLSPolicy(mail.TLSMandatory),
		)
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	client, err := mail.NewClient(config.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create mail client: %w", err)
	}

	return &SMTPSender{
		client:  client,
		from:    config.From,
		baseURL: baseURL,
		log:     log.With(zap.String("component", "mailer")),
	}, nil
}

func (s *SMTPSender) Send(ctx context.Context, recipient, template, token string) error {
	content, err := render(s.baseURL, template, token)
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(recipient); err != nil {
		return fmt.Errorf("set to address: %w", err)
	}
	msg.Subject(content.Subject)
	msg.SetBodyString(mail.TypeTextPlain, content.Text)
	msg.AddAlternativeString(mail.TypeTextHTML, content.HTML)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		s.log.Error("Failed to send email",
			zap.Error(err),
			zap.String("template", template),
			zap.String("recipient", recipient),
		)
		return fmt.Errorf("send %s email: %w", template, err)
	}

	s.log.Info("Email sent",
		zap.String("template", template),
		zap.String("recipient", recipient),
		zap.String("token", utils.TokenHint(token)),
	)
	return nil
}
