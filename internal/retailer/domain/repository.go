package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, retailer *Retailer) error
	Update(ctx context.Context, db *gorm.DB, retailer *Retailer) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Retailer, error)
	FindByStripeCustomerID(ctx context.Context, db *gorm.DB, customerID string) (*Retailer, error)
	ListActive(ctx context.Context, db *gorm.DB) ([]*Retailer, error)
	SetStripeCustomer(ctx context.Context, db *gorm.DB, id snowflake.ID, customerID string, at time.Time) error
	SetDefaultPaymentMethod(ctx context.Context, db *gorm.DB, id snowflake.ID, paymentMethodID string, at time.Time) error

	InsertSubscription(ctx context.Context, db *gorm.DB, sub *BrandSubscription) error
	FindSubscription(ctx context.Context, db *gorm.DB, retailerID, id snowflake.ID) (*BrandSubscription, error)
	DeactivateSubscription(ctx context.Context, db *gorm.DB, retailerID, id snowflake.ID, at time.Time) error
	ListSubscriptions(ctx context.Context, db *gorm.DB, retailerID snowflake.ID) ([]*BrandSubscription, error)
	ListActiveSubscriptions(ctx context.Context, db *gorm.DB) ([]*BrandSubscription, error)

	InsertPaymentMethod(ctx context.Context, db *gorm.DB, pm *PaymentMethod) error
}
