package sms

import (
	"strings"

	"github.com/smallbiznis/floorquote/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.sms",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config) Verifier {
	tw := cfg.Twilio
	if strings.TrimSpace(tw.AccountSID) == "" || strings.TrimSpace(tw.AuthToken) == "" || strings.TrimSpace(tw.VerifyServiceSID) == "" {
		return unconfigured{}
	}
	return NewTwilioVerify(TwilioConfig{
		AccountSID: tw.AccountSID,
		AuthToken:  tw.AuthToken,
		ServiceSID: tw.VerifyServiceSID,
		BaseURL:    tw.BaseURL,
	})
}
