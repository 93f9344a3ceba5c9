package payment

import (
	"github.com/smallbiznis/floorquote/internal/payment/adapters/stripe"
	"github.com/smallbiznis/floorquote/internal/payment/repository"
	paymentservice "github.com/smallbiznis/floorquote/internal/payment/service"
	"github.com/smallbiznis/floorquote/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(stripe.NewGateway),
	fx.Provide(stripe.NewWebhookAdapter),
	fx.Provide(paymentservice.NewService),
	fx.Provide(webhook.NewService),
)
