package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Balance struct {
	RetailerID       snowflake.ID `gorm:"primaryKey" json:"retailer_id"`
	CreditsRemaining int          `gorm:"column:credits_remaining;not null" json:"credits_remaining"`
	CreditsUsed      int          `gorm:"column:credits_used;not null" json:"credits_used"`
	UpdatedAt        time.Time    `gorm:"not null" json:"updated_at"`
}

func (Balance) TableName() string { return "retailer_lead_credits" }

type TransactionKind string

const (
	KindCreditDeduction TransactionKind = "credit_deduction"
	KindCardCharge      TransactionKind = "card_charge"
	KindCreditPurchase  TransactionKind = "credit_purchase"
)

type TransactionStatus string

const (
	TransactionSucceeded TransactionStatus = "succeeded"
	TransactionPending   TransactionStatus = "pending"
	TransactionFailed    TransactionStatus = "failed"
)

// Transaction is an append-only money or credit movement. Only Status,
// FailureReason and UpdatedAt change after insert.
type Transaction struct {
	ID                snowflake.ID      `gorm:"primaryKey" json:"id"`
	RetailerID        snowflake.ID      `gorm:"not null;index" json:"retailer_id"`
	DistributionID    *snowflake.ID     `json:"distribution_id,omitempty"`
	LeadID            *snowflake.ID     `json:"lead_id,omitempty"`
	Kind              TransactionKind   `gorm:"not null" json:"kind"`
	AmountCents       int64             `gorm:"column:amount_cents;not null" json:"amount_cents"`
	CreditsDelta      int               `gorm:"column:credits_delta;not null" json:"credits_delta"`
	Currency          string            `gorm:"not null" json:"currency"`
	ProviderReference string            `gorm:"column:provider_reference" json:"provider_reference,omitempty"`
	Status            TransactionStatus `gorm:"not null" json:"status"`
	FailureReason     string            `gorm:"column:failure_reason" json:"failure_reason,omitempty"`
	CreatedAt         time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"not null" json:"updated_at"`
}

func (Transaction) TableName() string { return "payment_transactions" }
