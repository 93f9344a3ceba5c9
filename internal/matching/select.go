package matching

import (
	"github.com/bwmarrin/snowflake"
	leaddomain "github.com/smallbiznis/floorquote/internal/lead/domain"
	retailerdomain "github.com/smallbiznis/floorquote/internal/retailer/domain"
)

// MaxCandidates caps how many retailers receive a single lead.
const MaxCandidates = 10

// Candidate is a retailer that passed every check, with the subscription that
// admitted it.
type Candidate struct {
	Retailer     retailerdomain.Retailer
	Subscription retailerdomain.BrandSubscription
}

// Select runs the matching checks over retailers in their given order and
// returns at most limit candidates. limit <= 0 uses MaxCandidates.
func Select(
	lead leaddomain.Lead,
	retailers []retailerdomain.Retailer,
	subscriptions []retailerdomain.BrandSubscription,
	limit int,
) []Candidate {
	if limit <= 0 {
		limit = MaxCandidates
	}

	byRetailer := make(map[snowflake.ID][]retailerdomain.BrandSubscription, len(subscriptions))
	for _, sub := range subscriptions {
		byRetailer[sub.RetailerID] = append(byRetailer[sub.RetailerID], sub)
	}

	out := make([]Candidate, 0, limit)
	for _, retailer := range retailers {
		if len(out) >= limit {
			break
		}
		if retailer.Status != retailerdomain.StatusActive {
			continue
		}
		sub, ok := firstMatchingSubscription(byRetailer[retailer.ID], lead.Brand, lead.SquareFootage)
		if !ok {
			continue
		}
		if !MatchPostal(lead.PostalCode, retailer.Prefixes()) {
			continue
		}
		if !MatchInstallation(retailer.InstallationPreference, lead.Installation) {
			continue
		}
		if !MatchUrgency(retailer.UrgencyPreference, lead.Timeline) {
			continue
		}
		out = append(out, Candidate{Retailer: retailer, Subscription: sub})
	}
	return out
}

func firstMatchingSubscription(subs []retailerdomain.BrandSubscription, brand string, sqft int) (retailerdomain.BrandSubscription, bool) {
	for _, sub := range subs {
		if MatchSubscription(sub, brand, sqft) {
			return sub, true
		}
	}
	return retailerdomain.BrandSubscription{}, false
}
