package matching

import (
	leaddomain "github.com/smallbiznis/floorquote/internal/lead/domain"
	retailerdomain "github.com/smallbiznis/floorquote/internal/retailer/domain"
)

func MatchInstallation(pref retailerdomain.InstallationPreference, installation bool) bool {
	switch pref {
	case retailerdomain.InstallBoth:
		return true
	case retailerdomain.InstallSupplyOnly:
		return !installation
	case retailerdomain.InstallSupplyAndInstall:
		return installation
	default:
		return false
	}
}

func MatchUrgency(pref retailerdomain.UrgencyPreference, timeline string) bool {
	asap := timeline == leaddomain.TimelineASAP
	switch pref {
	case retailerdomain.UrgencyAny:
		return true
	case retailerdomain.UrgencyASAPOnly:
		return asap
	case retailerdomain.UrgencyFlexible:
		return !asap
	default:
		return false
	}
}
