package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type InstallationPreference string

const (
	InstallSupplyOnly       InstallationPreference = "supply_only"
	InstallSupplyAndInstall InstallationPreference = "supply_and_install"
	InstallBoth             InstallationPreference = "both"
)

func (p InstallationPreference) Valid() bool {
	switch p {
	case InstallSupplyOnly, InstallSupplyAndInstall, InstallBoth:
		return true
	default:
		return false
	}
}

type UrgencyPreference string

const (
	UrgencyASAPOnly UrgencyPreference = "asap_only"
	UrgencyFlexible UrgencyPreference = "flexible"
	UrgencyAny      UrgencyPreference = "any"
)

func (p UrgencyPreference) Valid() bool {
	switch p {
	case UrgencyASAPOnly, UrgencyFlexible, UrgencyAny:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusSuspended Status = "suspended"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusPaused, StatusSuspended:
		return true
	default:
		return false
	}
}

type Retailer struct {
	ID                     snowflake.ID           `gorm:"primaryKey" json:"id"`
	BusinessName           string                 `gorm:"not null" json:"business_name"`
	Slug                   string                 `gorm:"not null" json:"slug"`
	ContactName            string                 `json:"contact_name,omitempty"`
	Email                  string                 `gorm:"not null" json:"email"`
	Phone                  string                 `json:"phone,omitempty"`
	PostalPrefixes         string                 `gorm:"column:postal_prefixes;not null" json:"-"`
	InstallationPreference InstallationPreference `gorm:"column:installation_preference;not null" json:"installation_preference"`
	UrgencyPreference      UrgencyPreference      `gorm:"column:urgency_preference;not null" json:"urgency_preference"`
	StripeCustomerID       string                 `gorm:"column:stripe_customer_id" json:"stripe_customer_id,omitempty"`
	DefaultPaymentMethodID string                 `gorm:"column:default_payment_method_id" json:"-"`
	Status                 Status                 `gorm:"not null" json:"status"`
	CreatedAt              time.Time              `gorm:"not null" json:"created_at"`
	UpdatedAt              time.Time              `gorm:"not null" json:"updated_at"`
}

func (Retailer) TableName() string { return "retailers" }

// Prefixes returns the coverage prefixes stored on the retailer.
func (r Retailer) Prefixes() []string {
	return SplitPrefixes(r.PostalPrefixes)
}

// HasPaymentMethod reports whether the retailer can be charged off-session.
func (r Retailer) HasPaymentMethod() bool {
	return strings.TrimSpace(r.StripeCustomerID) != "" && strings.TrimSpace(r.DefaultPaymentMethodID) != ""
}

func SplitPrefixes(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func JoinPrefixes(prefixes []string) string {
	return strings.Join(prefixes, ",")
}

type BrandSubscription struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	RetailerID snowflake.ID `gorm:"not null;index" json:"retailer_id"`
	Brand      string       `gorm:"not null" json:"brand"`
	SqftMin    int          `gorm:"column:sqft_tier_min;not null" json:"sqft_tier_min"`
	SqftMax    *int         `gorm:"column:sqft_tier_max" json:"sqft_tier_max,omitempty"`
	Active     bool         `gorm:"not null" json:"active"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"not null" json:"updated_at"`
}

func (BrandSubscription) TableName() string { return "brand_subscriptions" }

type PaymentMethod struct {
	ID                    snowflake.ID `gorm:"primaryKey" json:"id"`
	RetailerID            snowflake.ID `gorm:"not null;index" json:"retailer_id"`
	ProviderPaymentMethod string       `gorm:"column:provider_payment_method_id;not null" json:"provider_payment_method_id"`
	Brand                 string       `json:"brand,omitempty"`
	Last4                 string       `json:"last4,omitempty"`
	IsDefault             bool         `gorm:"not null" json:"is_default"`
	CreatedAt             time.Time    `gorm:"not null" json:"created_at"`
}

func (PaymentMethod) TableName() string { return "payment_methods" }
