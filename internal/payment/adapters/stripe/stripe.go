package stripe

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/floorquote/internal/payment/domain"
)

// DefaultTolerance is the maximum age of a signed webhook timestamp.
const DefaultTolerance = 5 * time.Minute

type Adapter struct {
	webhookSecret string
	tolerance     time.Duration
	now           func() time.Time
}

func NewAdapter(webhookSecret string) (*Adapter, error) {
	secret := strings.TrimSpace(webhookSecret)
	if secret == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}
	return &Adapter{
		webhookSecret: secret,
		tolerance:     DefaultTolerance,
		now:           time.Now,
	}, nil
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return paymentdomain.ErrInvalidSignature
	}

	ts, signatures, err := parseStripeSignature(sigHeader)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}
	if a.tolerance > 0 {
		unix, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return paymentdomain.ErrInvalidSignature
		}
		age := a.now().Sub(time.Unix(unix, 0))
		if age > a.tolerance || age < -a.tolerance {
			return paymentdomain.ErrInvalidSignature
		}
	}

	signedPayload := fmt.Sprintf("%s.%s", ts, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return paymentdomain.ErrInvalidSignature
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	var (
		parsed *paymentdomain.PaymentEvent
		err    error
	)
	switch strings.TrimSpace(event.Type) {
	case "checkout.session.completed":
		parsed, err = parseCheckoutSession(event)
	case "payment_intent.succeeded":
		parsed, err = parsePaymentIntent(event, paymentdomain.EventTypePaymentSucceeded)
	case "payment_intent.payment_failed":
		parsed, err = parsePaymentIntent(event, paymentdomain.EventTypePaymentFailed)
	case "setup_intent.succeeded":
		parsed, err = parseSetupIntent(event)
	default:
		return nil, paymentdomain.ErrEventIgnored
	}
	if err != nil {
		return nil, err
	}

	parsed.Provider = paymentdomain.ProviderStripe
	parsed.ProviderEventID = event.ID
	parsed.RawPayload = payload
	return parsed, nil
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeCheckoutSession struct {
	ID            string         `json:"id"`
	Customer      string         `json:"customer"`
	AmountTotal   int64          `json:"amount_total"`
	Currency      string         `json:"currency"`
	PaymentStatus string         `json:"payment_status"`
	Created       int64          `json:"created"`
	Metadata      map[string]any `json:"metadata"`
}

type stripePaymentIntent struct {
	ID               string         `json:"id"`
	Customer         string         `json:"customer"`
	Amount           int64          `json:"amount"`
	AmountReceived   int64          `json:"amount_received"`
	Currency         string         `json:"currency"`
	Created          int64          `json:"created"`
	Metadata         map[string]any `json:"metadata"`
	LastPaymentError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

type stripeSetupIntent struct {
	ID            string          `json:"id"`
	Customer      string          `json:"customer"`
	PaymentMethod json.RawMessage `json:"payment_method"`
	Created       int64           `json:"created"`
	Metadata      map[string]any  `json:"metadata"`
}

type stripePaymentMethod struct {
	ID   string `json:"id"`
	Card *struct {
		Brand string `json:"brand"`
		Last4 string `json:"last4"`
	} `json:"card"`
}

func parseCheckoutSession(event stripeEvent) (*paymentdomain.PaymentEvent, error) {
	var session stripeCheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}
	switch session.PaymentStatus {
	case "paid", "no_payment_required":
	default:
		// Delayed payment methods complete the session before funds settle.
		return nil, paymentdomain.ErrEventIgnored
	}

	retailerID, err := parseRetailerID(session.Metadata)
	if err != nil {
		return nil, err
	}
	credits, _ := strconv.Atoi(readMetadataValue(session.Metadata, "credits"))

	return &paymentdomain.PaymentEvent{
		Type:             paymentdomain.EventTypeCheckoutCompleted,
		ProviderObjectID: session.ID,
		ProviderCustomer: strings.TrimSpace(session.Customer),
		RetailerID:       retailerID,
		PackCode:         readMetadataValue(session.Metadata, "pack_code"),
		Credits:          credits,
		Amount:           session.AmountTotal,
		Currency:         strings.ToUpper(strings.TrimSpace(session.Currency)),
		OccurredAt:       timestamp(session.Created, event.Created),
	}, nil
}

func parsePaymentIntent(event stripeEvent, eventType string) (*paymentdomain.PaymentEvent, error) {
	var intent stripePaymentIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(intent.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	amount := intent.AmountReceived
	if amount <= 0 {
		amount = intent.Amount
	}
	retailerID, _ := parseRetailerID(intent.Metadata)

	parsed := &paymentdomain.PaymentEvent{
		Type:             eventType,
		ProviderObjectID: intent.ID,
		ProviderCustomer: strings.TrimSpace(intent.Customer),
		RetailerID:       retailerID,
		Amount:           amount,
		Currency:         strings.ToUpper(strings.TrimSpace(intent.Currency)),
		OccurredAt:       timestamp(intent.Created, event.Created),
	}
	if intent.LastPaymentError != nil {
		parsed.FailureReason = strings.TrimSpace(intent.LastPaymentError.Message)
		if parsed.FailureReason == "" {
			parsed.FailureReason = intent.LastPaymentError.Code
		}
	}
	return parsed, nil
}

func parseSetupIntent(event stripeEvent) (*paymentdomain.PaymentEvent, error) {
	var intent stripeSetupIntent
	if err := json.Unmarshal(event.Data.Object, &intent); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(intent.Customer) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	pm, err := decodePaymentMethod(intent.PaymentMethod)
	if err != nil || pm.ID == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}
	retailerID, _ := parseRetailerID(intent.Metadata)

	parsed := &paymentdomain.PaymentEvent{
		Type:             paymentdomain.EventTypeSetupSucceeded,
		ProviderObjectID: intent.ID,
		ProviderCustomer: strings.TrimSpace(intent.Customer),
		RetailerID:       retailerID,
		PaymentMethodID:  pm.ID,
		OccurredAt:       timestamp(intent.Created, event.Created),
	}
	if pm.Card != nil {
		parsed.CardBrand = pm.Card.Brand
		parsed.CardLast4 = pm.Card.Last4
	}
	return parsed, nil
}

// decodePaymentMethod accepts either a bare id or an expanded object.
func decodePaymentMethod(raw json.RawMessage) (stripePaymentMethod, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return stripePaymentMethod{}, errors.New("payment method missing")
	}
	if raw[0] == '"' {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return stripePaymentMethod{}, err
		}
		return stripePaymentMethod{ID: strings.TrimSpace(id)}, nil
	}
	var pm stripePaymentMethod
	if err := json.Unmarshal(raw, &pm); err != nil {
		return stripePaymentMethod{}, err
	}
	pm.ID = strings.TrimSpace(pm.ID)
	return pm, nil
}

func parseStripeSignature(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var ts string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			ts = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if ts == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return ts, signatures, nil
}

func timestamp(primary int64, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}

func parseRetailerID(metadata map[string]any) (snowflake.ID, error) {
	raw := readMetadataValue(metadata, "retailer_id")
	if raw == "" {
		return 0, paymentdomain.ErrInvalidRetailer
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id <= 0 {
		return 0, paymentdomain.ErrInvalidRetailer
	}
	return id, nil
}

func readMetadataValue(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	value, ok := metadata[key]
	if !ok {
		return ""
	}
	switch cast := value.(type) {
	case string:
		return strings.TrimSpace(cast)
	case float64:
		if cast == 0 {
			return ""
		}
		return strconv.FormatInt(int64(cast), 10)
	case json.Number:
		return cast.String()
	case int64:
		return strconv.FormatInt(cast, 10)
	case int:
		return strconv.Itoa(cast)
	}
	return ""
}
