package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/floorquote/internal/lead/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, lead *domain.Lead) error {
	return db.WithContext(ctx).Create(lead).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Lead, error) {
	var lead domain.Lead
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&lead).Error
	if err != nil {
		return nil, err
	}
	if lead.ID == 0 {
		return nil, nil
	}
	return &lead, nil
}

func (r *repo) TransitionVerification(
	ctx context.Context,
	db *gorm.DB,
	id snowflake.ID,
	from, to domain.VerificationStatus,
	at time.Time,
) (bool, error) {
	updates := map[string]any{
		"verification_status": to,
		"updated_at":          at,
	}
	switch to {
	case domain.VerificationVerified:
		updates["verified_at"] = at
	case domain.VerificationCancelled:
		updates["status"] = domain.StatusCancelled
	}

	res := db.WithContext(ctx).
		Model(&domain.Lead{}).
		Where("id = ? AND verification_status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) MarkAssigned(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	from := append(domain.StatusesBefore(domain.StatusAssigned), domain.StatusAssigned)
	res := db.WithContext(ctx).Exec(
		`UPDATE leads SET status = ?, updated_at = ?
		 WHERE id = ? AND verification_status = ? AND status IN ?`,
		domain.StatusAssigned, at, id, domain.VerificationVerified, from,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) InsertCode(ctx context.Context, db *gorm.DB, code *domain.VerificationCode) error {
	return db.WithContext(ctx).Create(code).Error
}

func (r *repo) FindActiveCode(ctx context.Context, db *gorm.DB, leadID snowflake.ID) (*domain.VerificationCode, error) {
	var code domain.VerificationCode
	err := db.WithContext(ctx).
		Where("lead_id = ? AND consumed_at IS NULL AND superseded_at IS NULL", leadID).
		Order("created_at desc, id desc").
		Limit(1).
		Find(&code).Error
	if err != nil {
		return nil, err
	}
	if code.ID == 0 {
		return nil, nil
	}
	return &code, nil
}

func (r *repo) SupersedeActiveCodes(ctx context.Context, db *gorm.DB, leadID snowflake.ID, at time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE lead_verification_codes SET superseded_at = ?
		 WHERE lead_id = ? AND consumed_at IS NULL AND superseded_at IS NULL`,
		at, leadID,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) ConsumeCode(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE lead_verification_codes SET consumed_at = ?
		 WHERE id = ? AND consumed_at IS NULL AND superseded_at IS NULL`,
		at, id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
