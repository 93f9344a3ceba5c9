// Package sms delivers and checks lead verification codes over SMS.
package sms

import (
	"context"
	"errors"
)

var ErrNotConfigured = errors.New("sms_not_configured")

type Verifier interface {
	// Start sends a new code to phone and returns the provider reference.
	Start(ctx context.Context, phone string) (string, error)
	// Check reports whether code is the currently approved code for phone.
	Check(ctx context.Context, phone, code string) (bool, error)
}

type unconfigured struct{}

func (unconfigured) Start(ctx context.Context, phone string) (string, error) {
	return "", ErrNotConfigured
}

func (unconfigured) Check(ctx context.Context, phone, code string) (bool, error) {
	return false, ErrNotConfigured
}
