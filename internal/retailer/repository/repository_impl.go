package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/floorquote/internal/retailer/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, retailer *domain.Retailer) error {
	return db.WithContext(ctx).Create(retailer).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, retailer *domain.Retailer) error {
	return db.WithContext(ctx).
		Model(&domain.Retailer{}).
		Where("id = ?", retailer.ID).
		Updates(map[string]any{
			"contact_name":            retailer.ContactName,
			"phone":                   retailer.Phone,
			"postal_prefixes":         retailer.PostalPrefixes,
			"installation_preference": retailer.InstallationPreference,
			"urgency_preference":      retailer.UrgencyPreference,
			"status":                  retailer.Status,
			"updated_at":              retailer.UpdatedAt,
		}).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Retailer, error) {
	return r.findOne(ctx, db, "id = ?", id)
}

func (r *repo) FindByStripeCustomerID(ctx context.Context, db *gorm.DB, customerID string) (*domain.Retailer, error) {
	return r.findOne(ctx, db, "stripe_customer_id = ?", customerID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Retailer, error) {
	var retailer domain.Retailer
	err := db.WithContext(ctx).
		Where(query, args...).
		Limit(1).
		Find(&retailer).Error
	if err != nil {
		return nil, err
	}
	if retailer.ID == 0 {
		return nil, nil
	}
	return &retailer, nil
}

// ListActive returns active retailers in retrieval order: oldest first.
func (r *repo) ListActive(ctx context.Context, db *gorm.DB) ([]*domain.Retailer, error) {
	var items []*domain.Retailer
	err := db.WithContext(ctx).
		Where("status = ?", domain.StatusActive).
		Order("created_at asc, id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SetStripeCustomer(ctx context.Context, db *gorm.DB, id snowflake.ID, customerID string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE retailers SET stripe_customer_id = ?, updated_at = ? WHERE id = ?`,
		customerID, at, id,
	).Error
}

func (r *repo) SetDefaultPaymentMethod(ctx context.Context, db *gorm.DB, id snowflake.ID, paymentMethodID string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE retailers SET default_payment_method_id = ?, updated_at = ? WHERE id = ?`,
		paymentMethodID, at, id,
	).Error
}

func (r *repo) InsertSubscription(ctx context.Context, db *gorm.DB, sub *domain.BrandSubscription) error {
	return db.WithContext(ctx).Create(sub).Error
}

func (r *repo) FindSubscription(ctx context.Context, db *gorm.DB, retailerID, id snowflake.ID) (*domain.BrandSubscription, error) {
	var sub domain.BrandSubscription
	err := db.WithContext(ctx).
		Where("retailer_id = ? AND id = ?", retailerID, id).
		Limit(1).
		Find(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.ID == 0 {
		return nil, nil
	}
	return &sub, nil
}

func (r *repo) DeactivateSubscription(ctx context.Context, db *gorm.DB, retailerID, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE brand_subscriptions SET active = ?, updated_at = ? WHERE retailer_id = ? AND id = ?`,
		false, at, retailerID, id,
	).Error
}

func (r *repo) ListSubscriptions(ctx context.Context, db *gorm.DB, retailerID snowflake.ID) ([]*domain.BrandSubscription, error) {
	var items []*domain.BrandSubscription
	err := db.WithContext(ctx).
		Where("retailer_id = ?", retailerID).
		Order("created_at asc, id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListActiveSubscriptions(ctx context.Context, db *gorm.DB) ([]*domain.BrandSubscription, error) {
	var items []*domain.BrandSubscription
	err := db.WithContext(ctx).
		Where("active = ?", true).
		Order("retailer_id asc, created_at asc, id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// InsertPaymentMethod stores pm as the retailer's only default card. A card
// already on file is left as is.
func (r *repo) InsertPaymentMethod(ctx context.Context, db *gorm.DB, pm *domain.PaymentMethod) error {
	if pm.IsDefault {
		err := db.WithContext(ctx).Exec(
			`UPDATE payment_methods SET is_default = ? WHERE retailer_id = ? AND provider_payment_method_id <> ?`,
			false, pm.RetailerID, pm.ProviderPaymentMethod,
		).Error
		if err != nil {
			return err
		}
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_payment_method_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"is_default"}),
	}).Create(pm).Error
}
