package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	creditdomain "github.com/smallbiznis/floorquote/internal/credit/domain"
	"github.com/smallbiznis/floorquote/internal/distribution/domain"
	"github.com/smallbiznis/floorquote/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, d *domain.Distribution) error {
	return db.WithContext(ctx).Create(d).Error
}

func (r *repo) Attempted(ctx context.Context, db *gorm.DB, leadID, retailerID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT
		   (SELECT COUNT(*) FROM lead_distributions WHERE lead_id = ? AND retailer_id = ?) +
		   (SELECT COUNT(*) FROM payment_transactions WHERE lead_id = ? AND retailer_id = ? AND kind = ?)`,
		leadID, retailerID,
		leadID, retailerID, creditdomain.KindCardCharge,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Distribution, error) {
	var item domain.Distribution
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListByLead(ctx context.Context, db *gorm.DB, leadID snowflake.ID) ([]*domain.Distribution, error) {
	var items []*domain.Distribution
	err := db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("created_at asc, id asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListByRetailer(ctx context.Context, db *gorm.DB, retailerID snowflake.ID, page pagination.Pagination) ([]*domain.Distribution, error) {
	stmt, err := pagination.Apply(db.WithContext(ctx).Where("retailer_id = ?", retailerID), page)
	if err != nil {
		return nil, err
	}
	var items []*domain.Distribution
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkNotified(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE lead_distributions SET notified_at = ? WHERE id = ?`,
		at, id,
	).Error
}

func (r *repo) ResolvePayment(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status, wasPaid bool) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE lead_distributions SET status = ?, was_paid = ? WHERE id = ? AND status = ?`,
		status, wasPaid, id, domain.StatusPaymentPending,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
