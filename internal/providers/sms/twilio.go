package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const statusApproved = "approved"

type twilioVerification struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	Valid  bool   `json:"valid"`
}

type twilioErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	ServiceSID string
	BaseURL    string
}

type TwilioVerify struct {
	cfg    TwilioConfig
	client *http.Client
}

func NewTwilioVerify(cfg TwilioConfig) *TwilioVerify {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://verify.twilio.com"
	}
	return &TwilioVerify{
		cfg:    cfg,
		client: &http.Client{Timeout: 12 * time.Second},
	}
}

func (t *TwilioVerify) Start(ctx context.Context, phone string) (string, error) {
	values := url.Values{}
	values.Set("To", phone)
	values.Set("Channel", "sms")

	v, status, err := t.post(ctx, "Verifications", values)
	if err != nil {
		return "", eris.Wrap(err, "twilio: start verification")
	}
	if status >= http.StatusBadRequest {
		return "", eris.Errorf("twilio: start verification: status %d", status)
	}
	return v.SID, nil
}

func (t *TwilioVerify) Check(ctx context.Context, phone, code string) (bool, error) {
	values := url.Values{}
	values.Set("To", phone)
	values.Set("Code", code)

	v, status, err := t.post(ctx, "VerificationCheck", values)
	if err != nil {
		return false, eris.Wrap(err, "twilio: check verification")
	}
	// Twilio answers 404 once a verification has expired or been approved.
	if status == http.StatusNotFound {
		return false, nil
	}
	if status >= http.StatusBadRequest {
		return false, eris.Errorf("twilio: check verification: status %d", status)
	}
	return v.Status == statusApproved, nil
}

func (t *TwilioVerify) post(ctx context.Context, resource string, values url.Values) (twilioVerification, int, error) {
	endpoint := fmt.Sprintf("%s/v2/Services/%s/%s", t.cfg.BaseURL, url.PathEscape(t.cfg.ServiceSID), resource)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return twilioVerification{}, 0, err
	}
	req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return twilioVerification{}, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var twErr twilioErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&twErr); err == nil && twErr.Message != "" && resp.StatusCode != http.StatusNotFound {
			return twilioVerification{}, resp.StatusCode, eris.New(twErr.Message)
		}
		return twilioVerification{}, resp.StatusCode, nil
	}

	var v twilioVerification
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return twilioVerification{}, resp.StatusCode, err
	}
	return v, resp.StatusCode, nil
}
