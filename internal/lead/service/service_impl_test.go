package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/floorquote/internal/clock"
	"github.com/smallbiznis/floorquote/internal/dbtest"
	"github.com/smallbiznis/floorquote/internal/lead/domain"
	"github.com/smallbiznis/floorquote/internal/lead/repository"
	"github.com/smallbiznis/floorquote/internal/providers/sms"
	"github.com/smallbiznis/floorquote/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentEmail struct {
	to       []string
	template string
	data     map[string]any
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

func (f *fakeEmail) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return f.err
}

func (f *fakeEmail) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentEmail{to: to, template: templateName, data: data})
	return nil
}

func (f *fakeEmail) lastCode(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1].data["code"].(string)
}

type fakeSMS struct {
	approved string
	started  int
	err      error
}

func (f *fakeSMS) Start(ctx context.Context, phone string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.started++
	return "VE1", nil
}

func (f *fakeSMS) Check(ctx context.Context, phone, code string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return code == f.approved, nil
}

type allowAll struct{}

func (allowAll) Allow(ctx context.Context, key string) (ratelimit.Decision, error) {
	return ratelimit.Decision{Allowed: true}, nil
}

type harness struct {
	svc   *Service
	clock *clock.FakeClock
	email *fakeEmail
	sms   *fakeSMS
}

var start = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := dbtest.Open(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	h := &harness{
		clock: clock.NewFakeClock(start),
		email: &fakeEmail{},
		sms:   &fakeSMS{approved: "424242"},
	}
	h.svc = New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Repo:    repository.Provide(),
		Clock:   h.clock,
		Email:   h.email,
		SMS:     h.sms,
		Limiter: allowAll{},
	}).(*Service)

	var n int
	h.svc.generate = func() (string, error) {
		n++
		return fmt.Sprintf("%06d", 111111*n), nil
	}
	return h
}

func validRequest() domain.CreateLeadRequest {
	return domain.CreateLeadRequest{
		FirstName:  "Dana",
		LastName:   "Wright",
		Email:      "Dana@Example.com ",
		Phone:      "(416) 555-0100",
		PostalCode: "m5v 2t6",
		Brand:      "Any",
		SizeLabel:  "500-1000 sq ft",
		Timeline:   "As soon as possible",
	}
}

func (h *harness) createLead(t *testing.T) domain.Lead {
	t.Helper()
	lead, err := h.svc.Create(context.Background(), validRequest())
	require.NoError(t, err)
	return lead
}

func TestCreateNormalizesInput(t *testing.T) {
	h := newHarness(t)
	lead := h.createLead(t)

	assert.Equal(t, "dana@example.com", lead.Email)
	assert.Equal(t, "+14165550100", lead.Phone)
	assert.Equal(t, "M5V2T6", lead.PostalCode)
	assert.Equal(t, domain.NoPreference, lead.Brand)
	assert.Equal(t, 1000, lead.SquareFootage)
	assert.Equal(t, domain.TimelineASAP, lead.Timeline)
	assert.Equal(t, domain.VerificationPending, lead.VerificationStatus)
	assert.Equal(t, domain.StatusNew, lead.Status)

	got, err := h.svc.GetByID(context.Background(), lead.ID.String())
	require.NoError(t, err)
	assert.Equal(t, lead.ID, got.ID)
	assert.Equal(t, "500-1000 sq ft", got.SizeLabel)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	h := newHarness(t)
	cases := map[string]struct {
		mutate func(*domain.CreateLeadRequest)
		want   error
	}{
		"missing name":  {func(r *domain.CreateLeadRequest) { r.FirstName = " " }, domain.ErrInvalidName},
		"bad email":     {func(r *domain.CreateLeadRequest) { r.Email = "nope" }, domain.ErrInvalidEmail},
		"bad phone":     {func(r *domain.CreateLeadRequest) { r.Phone = "12" }, domain.ErrInvalidPhone},
		"bad postal":    {func(r *domain.CreateLeadRequest) { r.PostalCode = "90210" }, domain.ErrInvalidPostalCode},
		"bad size":      {func(r *domain.CreateLeadRequest) { r.SizeLabel = "big" }, domain.ErrInvalidSquareFootage},
		"empty timeine": {func(r *domain.CreateLeadRequest) { r.Timeline = "" }, domain.ErrInvalidTimeline},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			_, err := h.svc.Create(context.Background(), req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestGetByIDErrors(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.GetByID(context.Background(), "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	_, err = h.svc.GetByID(context.Background(), "12345")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVerifyEmailCodeIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lead := h.createLead(t)

	resp, err := h.svc.SendCode(ctx, domain.SendCodeRequest{LeadID: lead.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, start.Add(10*time.Minute), resp.ExpiresAt)
	code := h.email.lastCode(t)

	h.clock.Advance(time.Minute)
	first, err := h.svc.Verify(ctx, domain.VerifyRequest{LeadID: lead.ID.String(), Code: code})
	require.NoError(t, err)
	assert.False(t, first.AlreadyVerified)
	assert.Equal(t, domain.VerificationVerified, first.Lead.VerificationStatus)
	require.NotNil(t, first.Lead.VerifiedAt)

	h.clock.Advance(time.Hour)
	second, err := h.svc.Verify(ctx, domain.VerifyRequest{LeadID: lead.ID.String(), Code: "000000"})
	require.NoError(t, err)
	assert.True(t, second.AlreadyVerified)
	assert.True(t, first.Lead.VerifiedAt.Equal(*second.Lead.VerifiedAt))
}

func TestVerifyRejectsAtExpiryInstant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lead := h.createLead(t)

	_, err := h.svc.SendCode(ctx, domain.SendCodeRequest{LeadID: lead.ID.String()})
	require.NoError(t, err)
	code := h.email.lastCode(t)

	h.clock.Advance(10 * time.Minute)
	_, err = h.svc.Verify(ctx, domain.VerifyRequest{LeadID: lead.ID.String(), Code: code})
	assert.ErrorIs(t, err, domain.ErrCodeExpired)

	got, err := h.svc.GetByID(ctx, lead.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationExpired, got.VerificationStatus)

	_, err = h.svc.Verify(ctx, domain.VerifyRequest{LeadID: lead.ID.String(), Code: code})
	assert.ErrorIs(t, err, domain.ErrLeadExpired)
}

func TestVerifyAcceptsOneSecondBeforeExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lead := h.createLead(t)

	_, err := h.svc.SendCode(ctx, domain.SendCodeRequest{LeadID: lead.ID.String()})
	require.NoError(t, err)
	code := h.email.lastCode(t)

	h.clock.Advance(10*time.Minute - time.Second)
	resp, err := h.svc.Verify(ctx, domain.VerifyRequest{LeadID: lead.ID.String(), Code: code})
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationVerified, resp.Lead.VerificationStatus)
}

func TestResendInvalidatesPreviousCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lead := h.createLead(t)

	_, err := h.svc.SendCode(ctx, domain.SendCodeRequest{LeadID: lead.ID.String()})
	require.NoError(t, err)
	oldCode := h.email.lastCode(t)

	h.clock.Advance(time.Minute)
	_, err = h.svc.SendCode(ctx, domain.SendCodeRequest{LeadID: lead.ID.String()})
	require.NoError(t, err)
	newCode := h.email.lastCode(t)
	require.NotEqual(t, oldCode, newCode)

	_, err = h.svc.Verify(ctx, domain.VerifyRequest{LeadID: lead.ID.String(), Code: oldCode})
	assert.ErrorIs(t, err, domain.ErrCodeMismatch)

	resp, err := h.svc.Verify(ctx, domain.VerifyRequest{LeadID: lead.ID.String(), Code: newCode})
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationVerified, resp.Lead.VerificationStatus)
}

func TestVerifyWithoutCode(t *testing.T) {
	h := newHarness(t)
	lead := h.createLead(t)

	_, err := h.svc.Verify(context.Background(), domain.VerifyRequest{LeadID: lead.ID.String(), Code: "123456"})
	assert.ErrorIs(t, err, domain.ErrCodeNotFound)

	_, err = h.svc.Verify(context.Background(), domain.VerifyRequest{LeadID: lead.ID.String(), Code: "12ab56"})
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}

func TestSendCodeRateLimited(t *testing.T) {
	h := newHarness(t)
	h.svc.limiter = ratelimit.NewLocalLimiter(ratelimit.Policy{PerMinute: 1, Burst: 1})
	ctx := context.Background()
	lead := h.createLead(t)

	_, err := h.svc.SendCode(ctx, domain.SendCodeRequest{LeadID: lead.ID.String()})
	require.NoError(t, err)
	_, err = h.svc.SendCode(ctx, domain.SendCodeRequest{LeadID: lead.ID.String()})
	assert.ErrorIs(t, err, domain.ErrResendLimited)
}

func TestSendCodeEmailFailure(t *testing.T) {
	h := newHarness(t)
	h.email.err = fmt.Errorf("smtp down")
	lead := h.createLead(t)

	_, err := h.svc.SendCode(context.Background(), domain.SendCodeRequest{LeadID: lead.ID.String()})
	assert.ErrorIs(t, err, domain.ErrVerificationFailed)
}

func TestVerifySMSChannel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lead := h.createLead(t)

	_, err := h.svc.SendCode(ctx, domain.SendCodeRequest{LeadID: lead.ID.String(), Channel: domain.ChannelSMS})
	require.NoError(t, err)
	assert.Equal(t, 1, h.sms.started)

	_, err = h.svc.Verify(ctx, domain.VerifyRequest{LeadID: lead.ID.String(), Code: "000000"})
	assert.ErrorIs(t, err, domain.ErrCodeMismatch)

	resp, err := h.svc.Verify(ctx, domain.VerifyRequest{LeadID: lead.ID.String(), Code: "424242"})
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationVerified, resp.Lead.VerificationStatus)
}

func TestSendCodeSMSUnavailable(t *testing.T) {
	h := newHarness(t)
	h.sms.err = sms.ErrNotConfigured
	lead := h.createLead(t)

	_, err := h.svc.SendCode(context.Background(), domain.SendCodeRequest{LeadID: lead.ID.String(), Channel: domain.ChannelSMS})
	assert.ErrorIs(t, err, domain.ErrSMSUnavailable)

	_, err = h.svc.SendCode(context.Background(), domain.SendCodeRequest{LeadID: lead.ID.String(), Channel: "fax"})
	assert.ErrorIs(t, err, domain.ErrInvalidChannel)
}

func TestCancelTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lead := h.createLead(t)

	cancelled, err := h.svc.Cancel(ctx, lead.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationCancelled, cancelled.VerificationStatus)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	_, err = h.svc.Cancel(ctx, lead.ID.String())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = h.svc.SendCode(ctx, domain.SendCodeRequest{LeadID: lead.ID.String()})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = h.svc.Verify(ctx, domain.VerifyRequest{LeadID: lead.ID.String(), Code: "123456"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func (h *harness) verify(t *testing.T, lead domain.Lead) {
	t.Helper()
	ctx := context.Background()
	_, err := h.svc.SendCode(ctx, domain.SendCodeRequest{LeadID: lead.ID.String()})
	require.NoError(t, err)
	_, err = h.svc.Verify(ctx, domain.VerifyRequest{LeadID: lead.ID.String(), Code: h.email.lastCode(t)})
	require.NoError(t, err)
}

func TestMarkAssigned(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lead := h.createLead(t)

	assigned, err := h.svc.MarkAssigned(ctx, lead.ID)
	require.NoError(t, err)
	assert.False(t, assigned, "pending lead")

	h.verify(t, lead)
	for i := 0; i < 2; i++ {
		assigned, err = h.svc.MarkAssigned(ctx, lead.ID)
		require.NoError(t, err)
		assert.True(t, assigned)
	}
	got, err := h.svc.GetByID(ctx, lead.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssigned, got.Status)
}

func TestMarkAssignedLeavesCancelledLead(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lead := h.createLead(t)
	h.verify(t, lead)

	_, err := h.svc.Cancel(ctx, lead.ID.String())
	require.NoError(t, err)

	assigned, err := h.svc.MarkAssigned(ctx, lead.ID)
	require.NoError(t, err)
	assert.False(t, assigned)

	got, err := h.svc.GetByID(ctx, lead.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Equal(t, domain.VerificationCancelled, got.VerificationStatus)
}

func TestVerifyLimitsAttemptsPerLead(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	lead := h.createLead(t)

	_, err := h.svc.SendCode(ctx, domain.SendCodeRequest{LeadID: lead.ID.String()})
	require.NoError(t, err)
	code := h.email.lastCode(t)

	for i := 0; i < 5; i++ {
		_, err = h.svc.Verify(ctx, domain.VerifyRequest{LeadID: lead.ID.String(), Code: "999999"})
		require.ErrorIs(t, err, domain.ErrCodeMismatch, "attempt %d", i+1)
	}
	_, err = h.svc.Verify(ctx, domain.VerifyRequest{LeadID: lead.ID.String(), Code: code})
	assert.ErrorIs(t, err, domain.ErrAttemptsExceeded)

	got, err := h.svc.GetByID(ctx, lead.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.VerificationPending, got.VerificationStatus)

	other := h.createLead(t)
	h.verify(t, other)
}

func TestNormalizeHelpers(t *testing.T) {
	assert.Equal(t, "+14165550100", normalizePhone("416.555.0100"))
	assert.Equal(t, "+14165550100", normalizePhone("1-416-555-0100"))
	assert.Equal(t, "+442071838750", normalizePhone("+44 20 7183 8750"))
	assert.Equal(t, "", normalizePhone("  "))
	assert.Equal(t, "as_soon_as_possible", normalizeTimeline(" As-soon as possible"))
	assert.Equal(t, "within_3_months", normalizeTimeline("within 3 months"))
}
