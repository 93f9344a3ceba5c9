package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(VerificationPending, VerificationVerified))
	assert.True(t, CanTransition(VerificationPending, VerificationExpired))
	assert.True(t, CanTransition(VerificationVerified, VerificationCancelled))
	assert.False(t, CanTransition(VerificationExpired, VerificationVerified))
	assert.False(t, CanTransition(VerificationCancelled, VerificationPending))
	assert.False(t, CanTransition(VerificationVerified, VerificationPending))
}

func TestCanTransitionStatus(t *testing.T) {
	assert.True(t, CanTransitionStatus(StatusNew, StatusAssigned))
	assert.True(t, CanTransitionStatus(StatusAssigned, StatusQuoted))
	assert.True(t, CanTransitionStatus(StatusQuoted, StatusClosed))
	assert.True(t, CanTransitionStatus(StatusAssigned, StatusCancelled))

	assert.False(t, CanTransitionStatus(StatusCancelled, StatusAssigned))
	assert.False(t, CanTransitionStatus(StatusClosed, StatusAssigned))
	assert.False(t, CanTransitionStatus(StatusQuoted, StatusAssigned))
	assert.False(t, CanTransitionStatus(StatusNew, StatusClosed))
}

func TestStatusesBefore(t *testing.T) {
	assert.Equal(t, []Status{StatusNew}, StatusesBefore(StatusAssigned))
	assert.Equal(t, []Status{StatusAssigned, StatusNew, StatusQuoted}, StatusesBefore(StatusCancelled))
	assert.Empty(t, StatusesBefore(StatusNew))
}

func TestLeadDistributable(t *testing.T) {
	lead := Lead{VerificationStatus: VerificationVerified, Status: StatusNew}
	assert.True(t, lead.Distributable())

	lead.Status = StatusAssigned
	assert.True(t, lead.Distributable())

	lead.Status = StatusCancelled
	assert.False(t, lead.Distributable())

	lead = Lead{VerificationStatus: VerificationPending, Status: StatusNew}
	assert.False(t, lead.Distributable())
}
