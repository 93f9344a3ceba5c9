package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/floorquote/internal/matching"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// CreditPack is a purchasable bundle of lead credits.
type CreditPack struct {
	Code       string `mapstructure:"code"`
	Name       string `mapstructure:"name"`
	Credits    int    `mapstructure:"credits"`
	PriceCents int64  `mapstructure:"price_cents"`
}

// Pricing is the single source of lead prices and credit packs.
type Pricing struct {
	Currency    string              `mapstructure:"currency"`
	LeadTiers   matching.PriceTable `mapstructure:"lead_tiers"`
	CreditPacks []CreditPack        `mapstructure:"credit_packs"`
}

func DefaultPricing() Pricing {
	return Pricing{
		Currency:  "CAD",
		LeadTiers: matching.DefaultPriceTable(),
		CreditPacks: []CreditPack{
			{Code: "starter", Name: "Starter", Credits: 10, PriceCents: 2500},
			{Code: "growth", Name: "Growth", Credits: 50, PriceCents: 11000},
			{Code: "pro", Name: "Pro", Credits: 150, PriceCents: 30000},
		},
	}
}

// Pack returns the credit pack with the given code.
func (p Pricing) Pack(code string) (CreditPack, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, pack := range p.CreditPacks {
		if strings.ToLower(pack.Code) == code {
			return pack, true
		}
	}
	return CreditPack{}, false
}

type PricingHolder struct {
	current atomic.Value // holds Pricing
}

// NewStaticPricing wraps a fixed pricing value, mostly for tests and CLI commands.
func NewStaticPricing(p Pricing) *PricingHolder {
	holder := &PricingHolder{}
	holder.current.Store(p)
	return holder
}

func NewPricingHolder(cfg Config, log *zap.Logger) (*PricingHolder, error) {
	v := viper.New()

	v.SetConfigName(cfg.Pricing.Name)
	v.SetConfigType("yml")
	for _, path := range cfg.Pricing.Paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("FLOORQUOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPricing()
	if cfg.Currency != "" {
		defaults.Currency = cfg.Currency
	}

	found := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		found = false
	}

	if !found {
		return NewStaticPricing(defaults), nil
	}

	pricing, err := decodePricing(v, defaults)
	if err != nil {
		return nil, err
	}

	holder := NewStaticPricing(pricing)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodePricing(v, defaults)
		if err != nil {
			log.Warn("pricing reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("pricing reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *PricingHolder) Get() Pricing {
	return h.current.Load().(Pricing)
}

func decodePricing(v *viper.Viper, defaults Pricing) (Pricing, error) {
	var p Pricing
	if err := v.UnmarshalKey("pricing", &p); err != nil {
		return Pricing{}, err
	}
	if strings.TrimSpace(p.Currency) == "" {
		p.Currency = defaults.Currency
	}
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	if len(p.LeadTiers) == 0 {
		p.LeadTiers = defaults.LeadTiers
	}
	if len(p.CreditPacks) == 0 {
		p.CreditPacks = defaults.CreditPacks
	}
	if err := validatePricing(p); err != nil {
		return Pricing{}, err
	}
	return p, nil
}

func validatePricing(p Pricing) error {
	if err := p.LeadTiers.Validate(); err != nil {
		return err
	}
	seen := map[string]struct{}{}
	for _, pack := range p.CreditPacks {
		code := strings.ToLower(strings.TrimSpace(pack.Code))
		if code == "" {
			return errors.New("pricing.credit_packs: code is required")
		}
		if _, ok := seen[code]; ok {
			return fmt.Errorf("pricing.credit_packs: duplicate code %q", code)
		}
		seen[code] = struct{}{}
		if pack.Credits <= 0 || pack.PriceCents <= 0 {
			return fmt.Errorf("pricing.credit_packs: %q must have positive credits and price", code)
		}
	}
	return nil
}
