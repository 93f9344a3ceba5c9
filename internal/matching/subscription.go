package matching

import (
	"strings"

	leaddomain "github.com/smallbiznis/floorquote/internal/lead/domain"
	retailerdomain "github.com/smallbiznis/floorquote/internal/retailer/domain"
)

// MatchSubscription reports whether an active subscription covers the lead's
// brand and size. Tier bounds are inclusive; a nil max is unbounded.
func MatchSubscription(sub retailerdomain.BrandSubscription, brand string, sqft int) bool {
	if !sub.Active {
		return false
	}
	if !brandMatches(sub.Brand, brand) {
		return false
	}
	if sqft < sub.SqftMin {
		return false
	}
	if sub.SqftMax != nil && sqft > *sub.SqftMax {
		return false
	}
	return true
}

func brandMatches(subscribed, requested string) bool {
	requested = NormalizeBrand(requested)
	if requested == leaddomain.NoPreference {
		return true
	}
	return NormalizeBrand(subscribed) == requested
}

// NormalizeBrand folds case and whitespace so brand comparisons are stable.
func NormalizeBrand(brand string) string {
	brand = strings.ToLower(strings.TrimSpace(brand))
	switch brand {
	case "", "any", "none", "no preference", "no-preference", leaddomain.NoPreference:
		return leaddomain.NoPreference
	}
	return strings.Join(strings.Fields(brand), " ")
}
