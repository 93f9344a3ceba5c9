package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/floorquote/internal/payment/domain"
)

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	payload := []byte(`{"id":"evt_123","type":"setup_intent.succeeded","data":{"object":{}}}`)
	now := time.Now()

	adapter, err := NewAdapter(secret)
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	adapter.now = func() time.Time { return now }

	reqHeader := http.Header{}
	reqHeader.Set("Stripe-Signature", buildStripeSignatureHeader(secret, payload, now.Unix()))
	if err := adapter.Verify(context.Background(), payload, reqHeader); err != nil {
		t.Fatalf("expected valid signature, got error: %v", err)
	}

	reqHeader.Set("Stripe-Signature", buildStripeSignatureHeader("wrong", payload, now.Unix()))
	if err := adapter.Verify(context.Background(), payload, reqHeader); !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature error, got %v", err)
	}

	stale := now.Add(-10 * time.Minute).Unix()
	reqHeader.Set("Stripe-Signature", buildStripeSignatureHeader(secret, payload, stale))
	if err := adapter.Verify(context.Background(), payload, reqHeader); !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected stale timestamp to be rejected, got %v", err)
	}

	reqHeader.Del("Stripe-Signature")
	if err := adapter.Verify(context.Background(), payload, reqHeader); !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected missing header to be rejected, got %v", err)
	}
}

func TestNewAdapterRequiresSecret(t *testing.T) {
	if _, err := NewAdapter("  "); !errors.Is(err, paymentdomain.ErrInvalidConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
}

func TestParsePaymentEvent(t *testing.T) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	retailerID := node.Generate()
	created := time.Now().UTC().Unix()

	tests := []struct {
		name       string
		event      any
		wantType   string
		amount     int64
		wantObject string
		check      func(t *testing.T, ev *paymentdomain.PaymentEvent)
	}{{
		name: "checkout.session.completed",
		event: map[string]any{
			"id":      "evt_cs",
			"type":    "checkout.session.completed",
			"created": created,
			"data": map[string]any{
				"object": map[string]any{
					"id":             "cs_1",
					"customer":       "cus_1",
					"amount_total":   11000,
					"currency":       "cad",
					"payment_status": "paid",
					"metadata": map[string]any{
						"retailer_id": retailerID.String(),
						"pack_code":   "growth",
						"credits":     "50",
					},
				},
			},
		},
		wantType:   paymentdomain.EventTypeCheckoutCompleted,
		amount:     11000,
		wantObject: "cs_1",
		check: func(t *testing.T, ev *paymentdomain.PaymentEvent) {
			if ev.RetailerID != retailerID || ev.Credits != 50 || ev.PackCode != "growth" {
				t.Fatalf("unexpected checkout fields: %+v", ev)
			}
			if ev.Currency != "CAD" {
				t.Fatalf("expected currency CAD, got %s", ev.Currency)
			}
		},
	}, {
		name: "payment_intent.payment_failed",
		event: map[string]any{
			"id":      "evt_pi",
			"type":    "payment_intent.payment_failed",
			"created": created,
			"data": map[string]any{
				"object": map[string]any{
					"id":       "pi_1",
					"customer": "cus_1",
					"amount":   350,
					"currency": "cad",
					"last_payment_error": map[string]any{
						"code":    "card_declined",
						"message": "Your card was declined.",
					},
				},
			},
		},
		wantType:   paymentdomain.EventTypePaymentFailed,
		amount:     350,
		wantObject: "pi_1",
		check: func(t *testing.T, ev *paymentdomain.PaymentEvent) {
			if ev.FailureReason != "Your card was declined." {
				t.Fatalf("unexpected failure reason %q", ev.FailureReason)
			}
		},
	}, {
		name: "setup_intent.succeeded expanded",
		event: map[string]any{
			"id":      "evt_si",
			"type":    "setup_intent.succeeded",
			"created": created,
			"data": map[string]any{
				"object": map[string]any{
					"id":       "seti_1",
					"customer": "cus_1",
					"payment_method": map[string]any{
						"id":   "pm_1",
						"card": map[string]any{"brand": "visa", "last4": "4242"},
					},
				},
			},
		},
		wantType:   paymentdomain.EventTypeSetupSucceeded,
		wantObject: "seti_1",
		check: func(t *testing.T, ev *paymentdomain.PaymentEvent) {
			if ev.PaymentMethodID != "pm_1" || ev.CardBrand != "visa" || ev.CardLast4 != "4242" {
				t.Fatalf("unexpected payment method fields: %+v", ev)
			}
			if ev.ProviderCustomer != "cus_1" {
				t.Fatalf("expected customer cus_1, got %s", ev.ProviderCustomer)
			}
		},
	}, {
		name: "setup_intent.succeeded id only",
		event: map[string]any{
			"id":   "evt_si2",
			"type": "setup_intent.succeeded",
			"data": map[string]any{
				"object": map[string]any{
					"id":             "seti_2",
					"customer":       "cus_1",
					"payment_method": "pm_2",
				},
			},
		},
		wantType:   paymentdomain.EventTypeSetupSucceeded,
		wantObject: "seti_2",
		check: func(t *testing.T, ev *paymentdomain.PaymentEvent) {
			if ev.PaymentMethodID != "pm_2" {
				t.Fatalf("expected pm_2, got %s", ev.PaymentMethodID)
			}
		},
	}}

	adapter := &Adapter{webhookSecret: "whsec_test"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("marshal payload: %v", err)
			}
			event, err := adapter.Parse(context.Background(), payload)
			if err != nil {
				t.Fatalf("parse event: %v", err)
			}
			if event.Type != tt.wantType {
				t.Fatalf("expected type %s, got %s", tt.wantType, event.Type)
			}
			if event.Amount != tt.amount {
				t.Fatalf("expected amount %d, got %d", tt.amount, event.Amount)
			}
			if event.ProviderObjectID != tt.wantObject {
				t.Fatalf("expected object %s, got %s", tt.wantObject, event.ProviderObjectID)
			}
			if event.Provider != paymentdomain.ProviderStripe {
				t.Fatalf("expected provider stripe, got %s", event.Provider)
			}
			tt.check(t, event)
		})
	}
}

func TestParseIgnoresUnpaidAndUnknownEvents(t *testing.T) {
	adapter := &Adapter{webhookSecret: "whsec_test"}

	unknown := []byte(`{"id":"evt_1","type":"customer.created","data":{"object":{}}}`)
	if _, err := adapter.Parse(context.Background(), unknown); !errors.Is(err, paymentdomain.ErrEventIgnored) {
		t.Fatalf("expected ignored event, got %v", err)
	}

	unpaid := []byte(`{"id":"evt_2","type":"checkout.session.completed","data":{"object":{"id":"cs_1","payment_status":"unpaid","metadata":{"retailer_id":"1"}}}}`)
	if _, err := adapter.Parse(context.Background(), unpaid); !errors.Is(err, paymentdomain.ErrEventIgnored) {
		t.Fatalf("expected unpaid session to be ignored, got %v", err)
	}

	if _, err := adapter.Parse(context.Background(), []byte(`{`)); !errors.Is(err, paymentdomain.ErrInvalidPayload) {
		t.Fatalf("expected invalid payload, got %v", err)
	}
}

func buildStripeSignatureHeader(secret string, payload []byte, timestamp int64) string {
	signedPayload := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	signature := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, signature)
}
