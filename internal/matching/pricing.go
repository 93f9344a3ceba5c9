package matching

import (
	"errors"
	"fmt"
)

// PriceTier charges PriceCents for leads up to and including UpTo square
// feet. A nil UpTo marks the catch-all tier, which must come last.
type PriceTier struct {
	UpTo       *int  `mapstructure:"up_to" json:"up_to,omitempty"`
	PriceCents int64 `mapstructure:"price_cents" json:"price_cents"`
}

type PriceTable []PriceTier

func intPtr(v int) *int { return &v }

func DefaultPriceTable() PriceTable {
	return PriceTable{
		{UpTo: intPtr(100), PriceCents: 100},
		{UpTo: intPtr(500), PriceCents: 250},
		{UpTo: intPtr(1000), PriceCents: 350},
		{UpTo: intPtr(5000), PriceCents: 500},
		{PriceCents: 1000},
	}
}

// PriceFor returns the price of a lead of the given size. The first tier
// whose bound covers sqft wins.
func (t PriceTable) PriceFor(sqft int) int64 {
	for _, tier := range t {
		if tier.UpTo == nil || sqft <= *tier.UpTo {
			return tier.PriceCents
		}
	}
	if len(t) == 0 {
		return 0
	}
	return t[len(t)-1].PriceCents
}

// Validate checks the table is ascending, ends in a catch-all tier and never
// gets cheaper as leads get larger.
func (t PriceTable) Validate() error {
	if len(t) == 0 {
		return errors.New("pricing.lead_tiers cannot be empty")
	}
	prevBound := -1
	var prevPrice int64 = -1
	for i, tier := range t {
		if tier.PriceCents < 0 {
			return fmt.Errorf("pricing.lead_tiers[%d]: negative price", i)
		}
		if tier.PriceCents < prevPrice {
			return fmt.Errorf("pricing.lead_tiers[%d]: price decreases", i)
		}
		prevPrice = tier.PriceCents
		if tier.UpTo == nil {
			if i != len(t)-1 {
				return fmt.Errorf("pricing.lead_tiers[%d]: unbounded tier must be last", i)
			}
			continue
		}
		if *tier.UpTo <= prevBound {
			return fmt.Errorf("pricing.lead_tiers[%d]: bounds must be strictly ascending", i)
		}
		prevBound = *tier.UpTo
	}
	if t[len(t)-1].UpTo != nil {
		return errors.New("pricing.lead_tiers: last tier must be unbounded")
	}
	return nil
}
