package email

import (
	"context"

	"go.uber.org/zap"
)

// Provider delivers transactional email to leads and retailers.
type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
	SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error
}

// LogProvider writes a log line instead of delivering mail. Template data is
// not logged since it carries verification codes.
type LogProvider struct {
	log *zap.Logger
}

func NewLogProvider(log *zap.Logger) *LogProvider {
	return &LogProvider{log: log.Named("email")}
}

func (p *LogProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	if len(to) == 0 {
		return ErrNoRecipients
	}
	p.log.Info("email delivery skipped", zap.Strings("to", to), zap.String("subject", subject))
	return nil
}

func (p *LogProvider) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error {
	if len(to) == 0 {
		return ErrNoRecipients
	}
	p.log.Info("email delivery skipped", zap.Strings("to", to), zap.String("template", templateName))
	return nil
}
