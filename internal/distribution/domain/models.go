package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type PaidVia string

const (
	PaidViaCredit PaidVia = "credit"
	PaidViaCard   PaidVia = "card"
	PaidViaNone   PaidVia = "none"
)

type Status string

const (
	StatusDelivered      Status = "delivered"
	StatusPaymentPending Status = "payment_pending"
	StatusPaymentFailed  Status = "payment_failed"
)

// Distribution records that a lead was offered to a retailer and how it was
// paid for. At most one row exists per (lead, retailer).
type Distribution struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	LeadID            snowflake.ID `gorm:"not null;index" json:"lead_id"`
	RetailerID        snowflake.ID `gorm:"not null;index" json:"retailer_id"`
	PriceCents        int64        `gorm:"column:price_cents;not null" json:"price_cents"`
	Currency          string       `gorm:"not null" json:"currency"`
	PaidVia           PaidVia      `gorm:"column:paid_via;not null" json:"paid_via"`
	WasPaid           bool         `gorm:"column:was_paid;not null" json:"was_paid"`
	Status            Status       `gorm:"not null" json:"status"`
	ProviderPaymentID string       `gorm:"column:provider_payment_id" json:"provider_payment_id,omitempty"`
	NotifiedAt        *time.Time   `json:"notified_at,omitempty"`
	CreatedAt         time.Time    `gorm:"not null" json:"created_at"`
}

func (Distribution) TableName() string { return "lead_distributions" }

// Report summarises one distribution run.
type Report struct {
	LeadID         string `json:"lead_id"`
	Candidates     int    `json:"candidates"`
	Distributed    int    `json:"distributed"`
	PaidByCredit   int    `json:"paid_by_credit"`
	PaidByCard     int    `json:"paid_by_card"`
	PaymentPending int    `json:"payment_pending"`
	Skipped        int    `json:"skipped"`
	PriceCents     int64  `json:"price_cents"`
	Currency       string `json:"currency"`
}
