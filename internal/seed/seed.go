package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	creditdomain "github.com/smallbiznis/floorquote/internal/credit/domain"
	retailerdomain "github.com/smallbiznis/floorquote/internal/retailer/domain"
	"gorm.io/gorm"
)

const seedReference = "seed"

type demoRetailer struct {
	name         string
	slug         string
	email        string
	prefixes     []string
	installation retailerdomain.InstallationPreference
	urgency      retailerdomain.UrgencyPreference
	brands       []string
	credits      int
}

var demoRetailers = []demoRetailer{
	{
		name:         "Harbourfront Flooring",
		slug:         "harbourfront-flooring",
		email:        "sales@harbourfront.example",
		prefixes:     []string{"M5V", "M5J", "M6K"},
		installation: retailerdomain.InstallBoth,
		urgency:      retailerdomain.UrgencyAny,
		brands:       []string{"shaw", "mohawk", "armstrong"},
		credits:      10,
	},
	{
		name:         "Kitsilano Floor Co",
		slug:         "kitsilano-floor-co",
		email:        "hello@kitsfloor.example",
		prefixes:     []string{"V6K", "V6J"},
		installation: retailerdomain.InstallSupplyAndInstall,
		urgency:      retailerdomain.UrgencyFlexible,
		brands:       []string{"shaw", "torlys"},
	},
}

// Result counts the rows created by a seed run.
type Result struct {
	Retailers     int
	Subscriptions int
	Credits       int
}

// EnsureDemoRetailers inserts a small set of active retailers with brand
// subscriptions and opening credit balances. Retailers whose slug already
// exists are left untouched.
func EnsureDemoRetailers(ctx context.Context, db *gorm.DB, node *snowflake.Node, now time.Time) (Result, error) {
	if db == nil || node == nil {
		return Result{}, errors.New("seed database handle is required")
	}

	var res Result
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, demo := range demoRetailers {
			created, err := ensureRetailerTx(ctx, tx, node, demo, now, &res)
			if err != nil {
				return err
			}
			if created != 0 && demo.credits > 0 {
				if err := grantCreditsTx(ctx, tx, node, created, demo.credits, now); err != nil {
					return err
				}
				res.Credits += demo.credits
			}
		}
		return nil
	})
	return res, err
}

func ensureRetailerTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, demo demoRetailer, now time.Time, res *Result) (snowflake.ID, error) {
	var existing retailerdomain.Retailer
	err := tx.WithContext(ctx).Where("slug = ?", demo.slug).First(&existing).Error
	if err == nil {
		return 0, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	retailer := retailerdomain.Retailer{
		ID:                     node.Generate(),
		BusinessName:           demo.name,
		Slug:                   demo.slug,
		Email:                  demo.email,
		PostalPrefixes:         retailerdomain.JoinPrefixes(demo.prefixes),
		InstallationPreference: demo.installation,
		UrgencyPreference:      demo.urgency,
		Status:                 retailerdomain.StatusActive,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := tx.WithContext(ctx).Create(&retailer).Error; err != nil {
		return 0, err
	}
	res.Retailers++

	for _, brand := range demo.brands {
		sub := retailerdomain.BrandSubscription{
			ID:         node.Generate(),
			RetailerID: retailer.ID,
			Brand:      brand,
			Active:     true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.WithContext(ctx).Create(&sub).Error; err != nil {
			return 0, err
		}
		res.Subscriptions++
	}
	return retailer.ID, nil
}

func grantCreditsTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, retailerID snowflake.ID, credits int, now time.Time) error {
	balance := creditdomain.Balance{
		RetailerID:       retailerID,
		CreditsRemaining: credits,
		UpdatedAt:        now,
	}
	if err := tx.WithContext(ctx).Create(&balance).Error; err != nil {
		return err
	}
	return tx.WithContext(ctx).Create(&creditdomain.Transaction{
		ID:                node.Generate(),
		RetailerID:        retailerID,
		Kind:              creditdomain.KindCreditPurchase,
		CreditsDelta:      credits,
		Currency:          "CAD",
		ProviderReference: seedReference,
		Status:            creditdomain.TransactionSucceeded,
		CreatedAt:         now,
		UpdatedAt:         now,
	}).Error
}
