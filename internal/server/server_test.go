package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/floorquote/internal/config"
	creditdomain "github.com/smallbiznis/floorquote/internal/credit/domain"
	distributiondomain "github.com/smallbiznis/floorquote/internal/distribution/domain"
	leaddomain "github.com/smallbiznis/floorquote/internal/lead/domain"
	"github.com/smallbiznis/floorquote/internal/observability"
	obsmetrics "github.com/smallbiznis/floorquote/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/floorquote/internal/payment/domain"
	retailerdomain "github.com/smallbiznis/floorquote/internal/retailer/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeLeadService struct {
	leaddomain.Service
	created   leaddomain.CreateLeadRequest
	createErr error
	sendErr   error
	verifyErr error
}

func (f *fakeLeadService) Create(ctx context.Context, req leaddomain.CreateLeadRequest) (leaddomain.Lead, error) {
	f.created = req
	if f.createErr != nil {
		return leaddomain.Lead{}, f.createErr
	}
	return leaddomain.Lead{ID: snowflake.ID(42), FirstName: req.FirstName, VerificationStatus: leaddomain.VerificationPending}, nil
}

func (f *fakeLeadService) SendCode(ctx context.Context, req leaddomain.SendCodeRequest) (leaddomain.SendCodeResponse, error) {
	if f.sendErr != nil {
		return leaddomain.SendCodeResponse{}, f.sendErr
	}
	return leaddomain.SendCodeResponse{LeadID: req.LeadID, Channel: req.Channel}, nil
}

func (f *fakeLeadService) Verify(ctx context.Context, req leaddomain.VerifyRequest) (leaddomain.VerifyResponse, error) {
	if f.verifyErr != nil {
		return leaddomain.VerifyResponse{}, f.verifyErr
	}
	return leaddomain.VerifyResponse{Lead: leaddomain.Lead{ID: snowflake.ID(42)}}, nil
}

type fakeRetailerService struct {
	retailerdomain.Service
}

func (fakeRetailerService) GetByID(ctx context.Context, id string) (retailerdomain.RetailerView, error) {
	return retailerdomain.RetailerView{}, retailerdomain.ErrNotFound
}

type fakeCreditService struct {
	creditdomain.Service
}

func (fakeCreditService) CreateCheckout(ctx context.Context, req creditdomain.CheckoutRequest) (creditdomain.CheckoutResponse, error) {
	return creditdomain.CheckoutResponse{}, creditdomain.ErrInvalidPack
}

type fakeDistributionService struct {
	distributiondomain.Service
	err error
}

func (f fakeDistributionService) Distribute(ctx context.Context, leadID string) (distributiondomain.Report, error) {
	if f.err != nil {
		return distributiondomain.Report{}, f.err
	}
	return distributiondomain.Report{Candidates: 2, Distributed: 1, PaymentPending: 1}, nil
}

type fakeWebhookService struct {
	err error
}

func (f fakeWebhookService) IngestWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	return f.err
}

type testEnv struct {
	handler      http.Handler
	leads        *fakeLeadService
	distribution *fakeDistributionService
	webhook      *fakeWebhookService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		leads:        &fakeLeadService{},
		distribution: &fakeDistributionService{},
		webhook:      &fakeWebhookService{},
	}
	engine := NewEngine(observability.Config{Environment: "test"}, obsmetrics.NewHTTPMetrics())
	NewServer(ServerParams{
		Gin:             engine,
		Cfg:             config.Config{},
		Log:             zap.NewNop(),
		Pricing:         config.NewStaticPricing(config.DefaultPricing()),
		LeadSvc:         env.leads,
		RetailerSvc:     fakeRetailerService{},
		CreditSvc:       fakeCreditService{},
		DistributionSvc: distributionProxy{env},
		WebhookSvc:      webhookProxy{env},
	})
	env.handler = CORS(config.CORSConfig{AllowedOrigins: []string{"https://shop.example"}})(engine)
	return env
}

// proxies let tests swap fake behaviour after the routes are registered.
type distributionProxy struct{ env *testEnv }

func (p distributionProxy) Distribute(ctx context.Context, leadID string) (distributiondomain.Report, error) {
	return p.env.distribution.Distribute(ctx, leadID)
}

func (p distributionProxy) ListByLead(ctx context.Context, leadID string) ([]distributiondomain.Distribution, error) {
	return nil, nil
}

func (p distributionProxy) ListByRetailer(ctx context.Context, req distributiondomain.ListByRetailerRequest) (distributiondomain.ListResponse, error) {
	return distributiondomain.ListResponse{}, nil
}

func (p distributionProxy) ResolveCardPayment(ctx context.Context, id snowflake.ID, succeeded bool) error {
	return nil
}

type webhookProxy struct{ env *testEnv }

func (p webhookProxy) IngestWebhook(ctx context.Context, payload []byte, headers http.Header) error {
	return p.env.webhook.IngestWebhook(ctx, payload, headers)
}

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Type    string            `json:"type"`
	Errors  []ValidationError `json:"errors"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var out envelope
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec, out
}

func TestCreateLeadReturnsEnvelope(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, http.MethodPost, "/api/leads", map[string]any{
		"first_name":  "Ana",
		"email":       "ana@example.com",
		"postal_code": "m5v 2t6",
		"brand":       "Mohawk",
		"size_label":  "500-1000 sq ft",
		"timeline":    "asap",
		"metadata":    map[string]any{"utm_source": "ads"},
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, out.Success)
	assert.Contains(t, string(out.Data), `"id":"42"`)
	assert.Equal(t, "500-1000 sq ft", env.leads.created.SizeLabel)
	assert.Equal(t, "ads", env.leads.created.Metadata["utm_source"])
}

func TestValidationErrorsMapTo400(t *testing.T) {
	env := newTestEnv(t)
	env.leads.createErr = leaddomain.ErrInvalidPostalCode

	rec, out := env.do(t, http.MethodPost, "/api/leads", map[string]any{"first_name": "Ana"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, out.Success)
	assert.Equal(t, "validation_error", out.Type)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "postal_code", out.Errors[0].Field)
	assert.Equal(t, "invalid_postal_code", out.Errors[0].Code)
}

func TestMalformedBodyIsInvalidRequest(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, http.MethodPost, "/api/leads/42/verify", "{not json")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "invalid_request", out.Errors[0].Code)
}

func TestLeadErrorStatuses(t *testing.T) {
	cases := []struct {
		name   string
		setup  func(env *testEnv)
		path   string
		body   any
		status int
		typ    string
	}{
		{
			name:   "expired code",
			setup:  func(env *testEnv) { env.leads.verifyErr = leaddomain.ErrCodeExpired },
			path:   "/api/leads/42/verify",
			body:   map[string]any{"code": "123456"},
			status: http.StatusGone,
			typ:    "verification_expired",
		},
		{
			name:   "expired lead",
			setup:  func(env *testEnv) { env.leads.verifyErr = leaddomain.ErrLeadExpired },
			path:   "/api/leads/42/verify",
			body:   map[string]any{"code": "123456"},
			status: http.StatusGone,
			typ:    "lead_expired",
		},
		{
			name:   "mismatch",
			setup:  func(env *testEnv) { env.leads.verifyErr = leaddomain.ErrCodeMismatch },
			path:   "/api/leads/42/verify",
			body:   map[string]any{"code": "000000"},
			status: http.StatusBadRequest,
			typ:    "validation_error",
		},
		{
			name:   "resend limited",
			setup:  func(env *testEnv) { env.leads.sendErr = leaddomain.ErrResendLimited },
			path:   "/api/leads/42/verification",
			body:   map[string]any{"channel": "email"},
			status: http.StatusTooManyRequests,
			typ:    "rate_limited",
		},
		{
			name:   "too many attempts",
			setup:  func(env *testEnv) { env.leads.verifyErr = leaddomain.ErrAttemptsExceeded },
			path:   "/api/leads/42/verify",
			body:   map[string]any{"code": "000000"},
			status: http.StatusTooManyRequests,
			typ:    "rate_limited",
		},
		{
			name:   "sms unavailable",
			setup:  func(env *testEnv) { env.leads.sendErr = leaddomain.ErrSMSUnavailable },
			path:   "/api/leads/42/verification",
			body:   map[string]any{"channel": "sms"},
			status: http.StatusServiceUnavailable,
			typ:    "service_unavailable",
		},
		{
			name:   "not verified",
			setup:  func(env *testEnv) { env.distribution.err = distributiondomain.ErrLeadNotVerified },
			path:   "/api/leads/42/distribute",
			status: http.StatusConflict,
			typ:    "conflict",
		},
		{
			name:   "lead missing",
			setup:  func(env *testEnv) { env.distribution.err = distributiondomain.ErrLeadNotFound },
			path:   "/api/leads/42/distribute",
			status: http.StatusNotFound,
			typ:    "not_found",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			tc.setup(env)
			rec, out := env.do(t, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.False(t, out.Success)
			assert.Equal(t, tc.typ, out.Type)
		})
	}
}

func TestDistributeReturnsReport(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, http.MethodPost, "/api/leads/42/distribute", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var report distributiondomain.Report
	require.NoError(t, json.Unmarshal(out.Data, &report))
	assert.Equal(t, 1, report.Distributed)
	assert.Equal(t, 1, report.PaymentPending)
}

func TestRetailerAndCreditErrors(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, http.MethodGet, "/api/retailers/7", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "retailer not found", out.Error)

	rec, out = env.do(t, http.MethodPost, "/api/retailers/7/credits/checkout", map[string]any{"pack_code": "mega"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "credit_pack", out.Errors[0].Field)
}

func TestPriceQuote(t *testing.T) {
	env := newTestEnv(t)

	for _, sqft := range []string{"800", "500-1000"} {
		rec, out := env.do(t, http.MethodGet, "/api/pricing/quote?sqft="+sqft, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var quote priceQuote
		require.NoError(t, json.Unmarshal(out.Data, &quote))
		assert.Equal(t, int64(350), quote.PriceCents, sqft)
		assert.Equal(t, "CAD", quote.Currency)
	}

	rec, _ := env.do(t, http.MethodGet, "/api/pricing/quote", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = env.do(t, http.MethodGet, "/api/pricing/quote?sqft=lots", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPageSizeBounds(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, http.MethodGet, "/api/retailers/7/distributions?page_size=500", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "page_size", out.Errors[0].Field)

	rec, _ = env.do(t, http.MethodGet, "/api/retailers/7/distributions?page_size=20", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOptionsAnswersNoContent(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/leads", "/api/leads/42/verify", "/webhooks/stripe", "/nowhere"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "https://shop.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code, path)
		assert.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"), path)
	}

	req := httptest.NewRequest(http.MethodOptions, "/api/leads", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestStripeWebhook(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodPost, "/webhooks/stripe", `{"id":"evt_1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	env.webhook.err = paymentdomain.ErrInvalidSignature
	rec, out := env.do(t, http.MethodPost, "/webhooks/stripe", `{"id":"evt_1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "signature", out.Errors[0].Field)

	env.webhook.err = paymentdomain.ErrNotConfigured
	rec, _ = env.do(t, http.MethodPost, "/webhooks/stripe", `{"id":"evt_1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClassifyErrorForLog(t *testing.T) {
	typ, code := classifyErrorForLog(leaddomain.ErrInvalidEmail)
	assert.Equal(t, "validation_error", typ)
	assert.Equal(t, "invalid_email", code)

	typ, code = classifyErrorForLog(distributiondomain.ErrDistributionInProgress)
	assert.Equal(t, "conflict", typ)
	assert.Equal(t, "distribution_in_progress", code)

	typ, code = classifyErrorForLog(assert.AnError)
	assert.Equal(t, "internal_error", typ)
	assert.Equal(t, "internal_error", code)
}
