package email

import (
	"strings"

	"github.com/smallbiznis/floorquote/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

// NewFromConfig returns an SMTP provider, or a LogProvider when SMTP_HOST is
// unset.
func NewFromConfig(cfg config.Config, log *zap.Logger) (Provider, error) {
	host := strings.TrimSpace(cfg.Email.SMTPHost)
	if host == "" {
		log.Warn("smtp host not configured, emails will only be logged")
		return NewLogProvider(log), nil
	}
	return NewSMTP(Config{
		Host:     host,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUsername,
		Password: cfg.Email.SMTPPassword,
		From:     cfg.Email.SMTPFrom,
	})
}
