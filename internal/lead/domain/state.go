package domain

import "sort"

var verificationTransitions = map[VerificationStatus][]VerificationStatus{
	VerificationPending:  {VerificationVerified, VerificationExpired, VerificationCancelled},
	VerificationVerified: {VerificationExpired, VerificationCancelled},
}

// CanTransition reports whether from -> to is a legal verification transition.
func CanTransition(from, to VerificationStatus) bool {
	for _, next := range verificationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

var statusTransitions = map[Status][]Status{
	StatusNew:      {StatusAssigned, StatusCancelled},
	StatusAssigned: {StatusQuoted, StatusCancelled},
	StatusQuoted:   {StatusClosed, StatusCancelled},
}

// CanTransitionStatus reports whether from -> to is a legal lifecycle move.
func CanTransitionStatus(from, to Status) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StatusesBefore lists the statuses that may move to to, sorted.
func StatusesBefore(to Status) []Status {
	var out []Status
	for from := range statusTransitions {
		if CanTransitionStatus(from, to) {
			out = append(out, from)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s VerificationStatus) Terminal() bool {
	return s == VerificationExpired || s == VerificationCancelled
}

func (s VerificationStatus) Valid() bool {
	switch s {
	case VerificationPending, VerificationVerified, VerificationExpired, VerificationCancelled:
		return true
	default:
		return false
	}
}

func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}
