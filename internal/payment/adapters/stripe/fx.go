package stripe

import (
	"github.com/smallbiznis/floorquote/internal/config"
	paymentdomain "github.com/smallbiznis/floorquote/internal/payment/domain"
	"go.uber.org/zap"
)

func NewGateway(cfg config.Config) paymentdomain.Gateway {
	return NewClient(cfg.Stripe.APIKey, cfg.Stripe.BaseURL)
}

// NewWebhookAdapter returns nil when no signing secret is configured; the
// webhook endpoint then rejects every delivery.
func NewWebhookAdapter(cfg config.Config, log *zap.Logger) paymentdomain.WebhookAdapter {
	adapter, err := NewAdapter(cfg.Stripe.WebhookSecret)
	if err != nil {
		log.Named("payment.stripe").Warn("stripe webhook secret not configured")
		return nil
	}
	return adapter
}
