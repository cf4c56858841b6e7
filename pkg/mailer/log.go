package mailer

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes the rendered link to the log instead of sending email.
// Used in development when no SMTP host is configured.
type LogSender struct {
	baseURL string
	log     *zap.Logger
}

func NewLogSender(baseURL string, log *zap.Logger) *LogSender {
	return &LogSender{baseURL: baseURL, log: log.With(zap.String("component", "mailer"))}
}

func (s *LogSender) Send(_ context.Context, recipient, template, token string) error {
	link, err := Link(s.baseURL, template, token)
	if err != nil {
		return err
	}

	s.log.Info("Email (not sent, development sender)",
		zap.String("template", template),
		zap.String("recipient", recipient),
		zap.String("link", link),
	)
	return nil
}
