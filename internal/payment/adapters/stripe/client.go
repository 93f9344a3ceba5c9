package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	paymentdomain "github.com/smallbiznis/floorquote/internal/payment/domain"
)

const defaultBaseURL = "https://api.stripe.com"

type stripeErrorResponse struct {
	Error struct {
		Type        string `json:"type"`
		Code        string `json:"code"`
		DeclineCode string `json:"decline_code"`
		Message     string `json:"message"`
	} `json:"error"`
}

type stripeObject struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	URL      string `json:"url"`
}

// Client is a minimal form-encoded Stripe REST client.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewClient(apiKey, baseURL string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  strings.TrimSpace(apiKey),
		baseURL: baseURL,
		client:  &http.Client{Timeout: 12 * time.Second},
	}
}

func (c *Client) CreateCustomer(ctx context.Context, req paymentdomain.CreateCustomerRequest) (paymentdomain.Customer, error) {
	values := url.Values{}
	values.Set("email", req.Email)
	if req.Name != "" {
		values.Set("name", req.Name)
	}
	setMetadata(values, "metadata", req.Metadata)

	var obj stripeObject
	if err := c.doRequest(ctx, http.MethodPost, "/v1/customers", values, req.IdempotencyKey, &obj); err != nil {
		return paymentdomain.Customer{}, eris.Wrap(err, "stripe: create customer")
	}
	return paymentdomain.Customer{ID: obj.ID}, nil
}

// ChargeOffSession creates and confirms a PaymentIntent against a saved card
// without the cardholder present.
func (c *Client) ChargeOffSession(ctx context.Context, req paymentdomain.ChargeRequest) (paymentdomain.PaymentIntent, error) {
	values := url.Values{}
	values.Set("amount", strconv.FormatInt(req.AmountCents, 10))
	values.Set("currency", strings.ToLower(req.Currency))
	values.Set("customer", req.Customer)
	values.Set("payment_method", req.PaymentMethod)
	values.Set("off_session", "true")
	values.Set("confirm", "true")
	if req.Description != "" {
		values.Set("description", req.Description)
	}
	setMetadata(values, "metadata", req.Metadata)

	var obj stripeObject
	if err := c.doRequest(ctx, http.MethodPost, "/v1/payment_intents", values, req.IdempotencyKey, &obj); err != nil {
		return paymentdomain.PaymentIntent{}, eris.Wrap(err, "stripe: charge off session")
	}
	return paymentdomain.PaymentIntent{
		ID:       obj.ID,
		Status:   obj.Status,
		Amount:   obj.Amount,
		Currency: strings.ToUpper(obj.Currency),
	}, nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req paymentdomain.CheckoutRequest) (paymentdomain.CheckoutSession, error) {
	values := url.Values{}
	values.Set("mode", "payment")
	if req.Customer != "" {
		values.Set("customer", req.Customer)
	}
	values.Set("success_url", req.SuccessURL)
	values.Set("cancel_url", req.CancelURL)
	values.Set("line_items[0][quantity]", "1")
	values.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	values.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.AmountCents, 10))
	values.Set("line_items[0][price_data][product_data][name]", req.ProductName)
	values.Set("payment_intent_data[setup_future_usage]", "off_session")
	setMetadata(values, "metadata", req.Metadata)

	var obj stripeObject
	if err := c.doRequest(ctx, http.MethodPost, "/v1/checkout/sessions", values, req.IdempotencyKey, &obj); err != nil {
		return paymentdomain.CheckoutSession{}, eris.Wrap(err, "stripe: create checkout session")
	}
	return paymentdomain.CheckoutSession{ID: obj.ID, URL: obj.URL}, nil
}

func (c *Client) doRequest(
	ctx context.Context,
	method string,
	path string,
	values url.Values,
	idempotencyKey string,
	out *stripeObject,
) error {
	if c.apiKey == "" {
		return paymentdomain.ErrNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, strings.NewReader(values.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var stripeErr stripeErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&stripeErr); err != nil {
			return eris.Errorf("stripe_request_failed: status %d", resp.StatusCode)
		}
		message := strings.TrimSpace(stripeErr.Error.Message)
		if message == "" {
			message = "stripe_request_failed"
		}
		if stripeErr.Error.Type == "card_error" {
			return eris.Wrap(paymentdomain.ErrPaymentDeclined, message)
		}
		return eris.New(message)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return err
	}
	if out.ID == "" {
		return eris.New("stripe_response_invalid")
	}
	return nil
}

func setMetadata(values url.Values, prefix string, metadata map[string]string) {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		values.Set(prefix+"["+k+"]", metadata[k])
	}
}
