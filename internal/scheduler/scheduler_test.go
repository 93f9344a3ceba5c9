package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/floorquote/internal/clock"
	creditdomain "github.com/smallbiznis/floorquote/internal/credit/domain"
	"github.com/smallbiznis/floorquote/internal/dbtest"
	distributiondomain "github.com/smallbiznis/floorquote/internal/distribution/domain"
	leaddomain "github.com/smallbiznis/floorquote/internal/lead/domain"
	retailerdomain "github.com/smallbiznis/floorquote/internal/retailer/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type recordingDistributions struct {
	distributiondomain.Service
	leads []string
	err   error
}

func (r *recordingDistributions) Distribute(ctx context.Context, leadID string) (distributiondomain.Report, error) {
	r.leads = append(r.leads, leadID)
	return distributiondomain.Report{LeadID: leadID}, r.err
}

type fixture struct {
	db            *gorm.DB
	node          *snowflake.Node
	clock         *clock.FakeClock
	distributions *recordingDistributions
	jobMetrics    *JobMetrics
	sched         *Scheduler
}

func setup(t *testing.T) *fixture {
	t.Helper()
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	f := &fixture{
		db:            dbtest.Open(t),
		node:          node,
		clock:         clock.NewFakeClock(time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)),
		distributions: &recordingDistributions{},
		jobMetrics:    NewJobMetrics(),
	}
	f.sched, err = New(Params{
		DB:            f.db,
		Log:           zaptest.NewLogger(t),
		Clock:         f.clock,
		Distributions: f.distributions,
		JobMetrics:    f.jobMetrics,
		Config: Config{
			BatchSize:          10,
			PendingLeadTTL:     72 * time.Hour,
			DistributeLookback: 24 * time.Hour,
		},
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) lead(t *testing.T, status leaddomain.VerificationStatus, createdAt time.Time, verifiedAt *time.Time) leaddomain.Lead {
	t.Helper()
	lead := leaddomain.Lead{
		ID:                 f.node.Generate(),
		FirstName:          "Sam",
		Email:              "sam@example.com",
		Phone:              "+14165550100",
		PostalCode:         "M5V2T6",
		Brand:              "shaw",
		SquareFootage:      600,
		Timeline:           leaddomain.TimelineASAP,
		VerificationStatus: status,
		Status:             leaddomain.StatusNew,
		Metadata:           datatypes.JSONMap{},
		VerifiedAt:         verifiedAt,
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}
	require.NoError(t, f.db.Create(&lead).Error)
	return lead
}

func (f *fixture) status(t *testing.T, id snowflake.ID) leaddomain.VerificationStatus {
	t.Helper()
	var lead leaddomain.Lead
	require.NoError(t, f.db.First(&lead, "id = ?", id).Error)
	return lead.VerificationStatus
}

func TestExpirePendingLeadsJob(t *testing.T) {
	f := setup(t)
	now := f.clock.Now()

	stale := f.lead(t, leaddomain.VerificationPending, now.Add(-73*time.Hour), nil)
	fresh := f.lead(t, leaddomain.VerificationPending, now.Add(-71*time.Hour), nil)
	verifiedAt := now.Add(-100 * time.Hour)
	verified := f.lead(t, leaddomain.VerificationVerified, now.Add(-100*time.Hour), &verifiedAt)

	n, err := f.sched.ExpirePendingLeadsJob(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, leaddomain.VerificationExpired, f.status(t, stale.ID))
	assert.Equal(t, leaddomain.VerificationPending, f.status(t, fresh.ID))
	assert.Equal(t, leaddomain.VerificationVerified, f.status(t, verified.ID))

	n, err = f.sched.ExpirePendingLeadsJob(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDistributeVerifiedLeadsJob(t *testing.T) {
	f := setup(t)
	now := f.clock.Now()

	recent := now.Add(-time.Hour)
	old := now.Add(-48 * time.Hour)
	ready := f.lead(t, leaddomain.VerificationVerified, recent, &recent)
	f.lead(t, leaddomain.VerificationVerified, old, &old)
	f.lead(t, leaddomain.VerificationPending, recent, nil)
	done := f.lead(t, leaddomain.VerificationVerified, recent, &recent)

	retailer := retailerdomain.Retailer{
		ID:                     f.node.Generate(),
		BusinessName:           "Oak Co",
		Slug:                   "oak-co",
		Email:                  "oak@example.com",
		PostalPrefixes:         "M5V",
		InstallationPreference: retailerdomain.InstallBoth,
		UrgencyPreference:      retailerdomain.UrgencyAny,
		Status:                 retailerdomain.StatusActive,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	require.NoError(t, f.db.Create(&retailer).Error)
	require.NoError(t, f.db.Create(&distributiondomain.Distribution{
		ID:         f.node.Generate(),
		LeadID:     done.ID,
		RetailerID: retailer.ID,
		PriceCents: 250,
		Currency:   "CAD",
		PaidVia:    distributiondomain.PaidViaNone,
		Status:     distributiondomain.StatusPaymentPending,
		CreatedAt:  now,
	}).Error)

	n, err := f.sched.DistributeVerifiedLeadsJob(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{ready.ID.String()}, f.distributions.leads)
}

func TestDistributeJobSkipsLeadsWithPaymentAttempts(t *testing.T) {
	f := setup(t)
	now := f.clock.Now()
	recent := now.Add(-time.Hour)
	declined := f.lead(t, leaddomain.VerificationVerified, recent, &recent)
	ready := f.lead(t, leaddomain.VerificationVerified, recent, &recent)

	retailer := retailerdomain.Retailer{
		ID:                     f.node.Generate(),
		BusinessName:           "Walnut Co",
		Slug:                   "walnut-co",
		Email:                  "walnut@example.com",
		PostalPrefixes:         "M5V",
		InstallationPreference: retailerdomain.InstallBoth,
		UrgencyPreference:      retailerdomain.UrgencyAny,
		Status:                 retailerdomain.StatusActive,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	require.NoError(t, f.db.Create(&retailer).Error)
	leadID := declined.ID
	require.NoError(t, f.db.Create(&creditdomain.Transaction{
		ID:            f.node.Generate(),
		RetailerID:    retailer.ID,
		LeadID:        &leadID,
		Kind:          creditdomain.KindCardCharge,
		AmountCents:   350,
		Currency:      "CAD",
		Status:        creditdomain.TransactionFailed,
		FailureReason: "card_declined",
		CreatedAt:     now,
		UpdatedAt:     now,
	}).Error)

	n, err := f.sched.DistributeVerifiedLeadsJob(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{ready.ID.String()}, f.distributions.leads)
}

func TestDistributeJobSkipsLockedLeads(t *testing.T) {
	f := setup(t)
	recent := f.clock.Now().Add(-time.Minute)
	f.lead(t, leaddomain.VerificationVerified, recent, &recent)
	f.distributions.err = distributiondomain.ErrDistributionInProgress

	n, err := f.sched.DistributeVerifiedLeadsJob(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.distributions.leads, 1)
}

func TestRunOnceRunsEveryJob(t *testing.T) {
	f := setup(t)
	now := f.clock.Now()
	stale := f.lead(t, leaddomain.VerificationPending, now.Add(-80*time.Hour), nil)
	recent := now.Add(-time.Minute)
	f.lead(t, leaddomain.VerificationVerified, recent, &recent)

	require.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Equal(t, leaddomain.VerificationExpired, f.status(t, stale.ID))
	assert.Len(t, f.distributions.leads, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.jobMetrics.processed.WithLabelValues(jobExpirePendingLeads)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.jobMetrics.processed.WithLabelValues(jobDistributeVerified)))
	assert.Equal(t, float64(now.Unix()), testutil.ToFloat64(f.jobMetrics.lastSuccess.WithLabelValues(jobDistributeVerified)))
}

type mockDistributions struct {
	distributiondomain.Service
	mock.Mock
}

func (m *mockDistributions) Distribute(ctx context.Context, leadID string) (distributiondomain.Report, error) {
	args := m.Called(ctx, leadID)
	return args.Get(0).(distributiondomain.Report), args.Error(1)
}

func TestDistributeJobContinuesAfterFailure(t *testing.T) {
	f := setup(t)
	now := f.clock.Now()
	first := now.Add(-2 * time.Hour)
	second := now.Add(-time.Hour)
	failing := f.lead(t, leaddomain.VerificationVerified, first, &first)
	ok := f.lead(t, leaddomain.VerificationVerified, second, &second)

	distributions := &mockDistributions{}
	distributions.On("Distribute", mock.Anything, failing.ID.String()).
		Return(distributiondomain.Report{}, assert.AnError).Once()
	distributions.On("Distribute", mock.Anything, ok.ID.String()).
		Return(distributiondomain.Report{LeadID: ok.ID.String(), Candidates: 2, Distributed: 2}, nil).Once()

	sched, err := New(Params{
		DB:            f.db,
		Log:           zap.NewNop(),
		Clock:         f.clock,
		Distributions: distributions,
		Config:        Config{BatchSize: 10, DistributeLookback: 24 * time.Hour},
	})
	require.NoError(t, err)

	n, err := sched.DistributeVerifiedLeadsJob(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	distributions.AssertExpectations(t)
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
