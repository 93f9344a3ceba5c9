package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// NoPreference is the brand sentinel for homeowners open to any brand.
const NoPreference = "no_preference"

// TimelineASAP is the only timeline value urgency preferences distinguish.
const TimelineASAP = "as_soon_as_possible"

type VerificationStatus string

const (
	VerificationPending   VerificationStatus = "pending_verification"
	VerificationVerified  VerificationStatus = "verified"
	VerificationExpired   VerificationStatus = "expired"
	VerificationCancelled VerificationStatus = "cancelled"
)

type Status string

const (
	StatusNew       Status = "new"
	StatusAssigned  Status = "assigned"
	StatusQuoted    Status = "quoted"
	StatusClosed    Status = "closed"
	StatusCancelled Status = "cancelled"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

type Lead struct {
	ID                 snowflake.ID       `gorm:"primaryKey" json:"id"`
	FirstName          string             `gorm:"not null" json:"first_name"`
	LastName           string             `gorm:"not null" json:"last_name"`
	Email              string             `gorm:"not null" json:"email"`
	Phone              string             `gorm:"not null" json:"phone"`
	PostalCode         string             `gorm:"not null" json:"postal_code"`
	City               string             `json:"city,omitempty"`
	Brand              string             `gorm:"not null" json:"brand"`
	SquareFootage      int                `gorm:"column:square_footage;not null" json:"square_footage"`
	SizeLabel          string             `gorm:"column:size_label" json:"size_label,omitempty"`
	Installation       bool               `gorm:"not null" json:"installation"`
	Timeline           string             `gorm:"not null" json:"timeline"`
	Notes              string             `json:"notes,omitempty"`
	VerificationStatus VerificationStatus `gorm:"column:verification_status;not null" json:"verification_status"`
	Status             Status             `gorm:"not null" json:"status"`
	Metadata           datatypes.JSONMap  `gorm:"type:jsonb;not null;default:'{}'" json:"metadata,omitempty"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`
	CreatedAt          time.Time          `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"not null" json:"updated_at"`
}

func (Lead) TableName() string { return "leads" }

func (l Lead) FullName() string {
	if l.LastName == "" {
		return l.FirstName
	}
	return l.FirstName + " " + l.LastName
}

// Distributable reports whether the lead may enter the distribution pipeline.
func (l Lead) Distributable() bool {
	return l.VerificationStatus == VerificationVerified &&
		(l.Status == StatusNew || l.Status == StatusAssigned)
}

type VerificationCode struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	LeadID       snowflake.ID `gorm:"not null;index" json:"lead_id"`
	Channel      Channel      `gorm:"not null" json:"channel"`
	CodeHash     string       `gorm:"column:code_hash" json:"-"`
	ExpiresAt    time.Time    `gorm:"not null" json:"expires_at"`
	ConsumedAt   *time.Time   `json:"consumed_at,omitempty"`
	SupersededAt *time.Time   `json:"superseded_at,omitempty"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
}

func (VerificationCode) TableName() string { return "lead_verification_codes" }

// ExpiredAt reports whether the code is no longer usable at t. The expiry
// instant itself is already expired.
func (c VerificationCode) ExpiredAt(t time.Time) bool {
	return !t.Before(c.ExpiresAt)
}
